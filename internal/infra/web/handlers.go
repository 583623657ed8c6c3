package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"imagegen-dashboard/internal/domain"
	"imagegen-dashboard/internal/domain/model"
	"imagegen-dashboard/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type jobView struct {
	ID            string                 `json:"id"`
	Model         string                 `json:"model"`
	Prompt        string                 `json:"prompt"`
	Input         map[string]any         `json:"input,omitempty"`
	Tags          string                 `json:"tags,omitempty"`
	State         model.JobState         `json:"state"`
	ResultURLs    []string               `json:"result_urls,omitempty"`
	FailureReason string                 `json:"failure_reason,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	FinishedAt    *time.Time             `json:"finished_at,omitempty"`
	Progress      *progressView          `json:"progress,omitempty"`
	Report        *usecase.PersistReport `json:"report,omitempty"`
}

type progressView struct {
	Attempt     int     `json:"attempt"`
	MaxAttempts int     `json:"max_attempts"`
	Fraction    float64 `json:"fraction"`
	LastError   string  `json:"last_error,omitempty"`
}

func toJobView(j model.Job) jobView {
	v := jobView{
		ID:            j.ID,
		Model:         j.Model,
		Prompt:        j.Prompt(),
		Input:         j.Input,
		Tags:          j.Tags,
		State:         j.State,
		ResultURLs:    j.ResultURLs,
		FailureReason: j.FailureReason,
		CreatedAt:     j.CreatedAt,
	}
	if !j.FinishedAt.IsZero() {
		t := j.FinishedAt
		v.FinishedAt = &t
	}
	return v
}

func (s *Server) jobDetails(j model.Job) jobView {
	v := toJobView(j)
	if p, ok := s.deps.Generation.Progress(j.ID); ok {
		pv := &progressView{Attempt: p.Attempt, MaxAttempts: p.MaxAttempts, Fraction: p.Fraction}
		if p.Err != nil {
			pv.LastError = p.Err.Error()
		}
		v.Progress = pv
	}
	if r, ok := s.deps.Generation.Report(j.ID); ok {
		v.Report = &r
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject string `json:"subject"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.Subject == "" {
		req.Subject = clientFrom(r.Context())
	}
	tok, exp, err := s.auth.Mint(req.Subject)
	if err != nil {
		writeError(w, http.StatusNotImplemented, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": tok, "expires_at": exp})
}

func decodeSubmit(r *http.Request) (usecase.SubmitRequest, error) {
	var req usecase.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, domain.NewStepError(domain.StepCreate, domain.ErrInvalidArgument, err)
	}
	return req, nil
}

// handleSubmitJob creates the remote job and polls it on the worker pool.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	job, err := s.deps.Generation.Submit(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.deps.Generation.Start(r.Context(), job.ID); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("could not schedule job")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "job": toJobView(*job)})
		return
	}
	writeJSON(w, http.StatusAccepted, toJobView(*job))
}

// handleGenerate runs the whole lifecycle within the request.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	job, rep, err := s.deps.Generation.Generate(r.Context(), req, nil)
	if job == nil {
		writeDomainError(w, err)
		return
	}
	v := toJobView(*job)
	v.Report = rep
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "step": domain.StepOf(err), "job": v})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	hist := s.deps.Generation.History()
	out := make([]jobView, 0, len(hist))
	for _, j := range hist {
		out = append(out, toJobView(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.deps.Generation.Job(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, s.jobDetails(j))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.deps.Generation.Job(id); !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.deps.Generation.Cancel(id)})
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	items, err := s.deps.Library.List(r.Context(), force)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if r.URL.Query().Get("favorites") == "true" {
		favs := items[:0]
		for _, a := range items {
			if a.Favorite {
				favs = append(favs, a)
			}
		}
		items = favs
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"artifacts":    items,
		"refreshed_at": s.deps.Library.RefreshedAt(),
	})
}

func (s *Server) handleUploadArtifact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL   string `json:"url"`
		Name  string `json:"name"`
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	a, err := s.deps.Uploader.Upload(r.Context(), req.URL, req.Name, req.JobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Library.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, ok := s.deps.Library.Find(id)
	if !ok {
		a = model.Artifact{ID: id}
	}
	// only URLs recorded on the artifact are fetched
	res := s.deps.Resolver.Resolve(r.Context(), usecase.ResolveRequest{Artifact: a})
	if res.Unavailable {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "image unavailable", "viewer_url": res.ViewerURL})
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("X-Image-Tier", string(res.Tier))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	id, tag := chi.URLParam(r, "id"), chi.URLParam(r, "tag")
	added := s.deps.Metadata.AddTag(id, tag)
	writeJSON(w, http.StatusOK, map[string]any{"added": added, "tags": s.deps.Metadata.Tags(id)})
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	id, tag := chi.URLParam(r, "id"), chi.URLParam(r, "tag")
	removed := s.deps.Metadata.RemoveTag(id, tag)
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed, "tags": s.deps.Metadata.Tags(id)})
}

func (s *Server) handleSetFavorite(fav bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s.deps.Metadata.SetFavorite(id, fav)
		writeJSON(w, http.StatusOK, map[string]bool{"favorite": fav})
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := s.deps.Stats.Snapshot()
	writeJSON(w, http.StatusOK, struct {
		usecase.Stats
		SuccessRate float64 `json:"success_rate"`
	}{Stats: snap, SuccessRate: snap.SuccessRate()})
}

func (s *Server) handleLogRows(w http.ResponseWriter, r *http.Request) {
	if s.deps.RowReader == nil {
		writeError(w, http.StatusNotFound, "row log is not readable")
		return
	}
	rows, err := s.deps.RowReader.Rows(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if s.deps.CSV == nil {
		writeError(w, http.StatusNotFound, "csv log disabled")
		return
	}
	var buf bytes.Buffer
	ok, err := s.deps.CSV.Export(&buf)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="image_generation_log_`+time.Now().Format("20060102_150405")+`.csv"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if s.deps.CSV == nil {
		writeError(w, http.StatusNotFound, "csv log disabled")
		return
	}
	n, err := s.deps.CSV.Import(http.MaxBytesReader(w, r.Body, 16<<20))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}
