package usecase

import "testing"

func TestMetadataStore(t *testing.T) {
	m := NewMetadataStore()
	if !m.AddTag("a", "red") || m.AddTag("a", "red") || m.AddTag("a", " ") {
		t.Fatal("AddTag should add new tags once and ignore blanks")
	}
	m.AddTag("a", "circle")
	if tags := m.Tags("a"); len(tags) != 2 || tags[0] != "red" {
		t.Fatalf("unexpected tags %v", tags)
	}
	if !m.RemoveTag("a", "red") || m.RemoveTag("a", "red") {
		t.Fatal("RemoveTag should remove once")
	}
	m.SetFavorite("b", true)
	m.SetFavorite("a", true)
	m.SetFavorite("a", false)
	if m.IsFavorite("a") || !m.IsFavorite("b") {
		t.Fatal("favorite flags wrong")
	}
	if favs := m.Favorites(); len(favs) != 1 || favs[0] != "b" {
		t.Fatalf("unexpected favorites %v", favs)
	}
}

func TestStats_SuccessRate(t *testing.T) {
	s := NewStatsUseCase()
	if s.Snapshot().SuccessRate() != 0 {
		t.Fatal("empty stats should report 0")
	}
	s.JobSubmitted("m")
	s.JobSubmitted("m")
	s.JobSucceeded(2)
	s.JobFailed("timed_out")
	snap := s.Snapshot()
	if snap.SuccessRate() != 50 || snap.GeneratedImages != 2 || snap.Succeeded+snap.Failed > snap.TotalJobs {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}
