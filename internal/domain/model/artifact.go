package model

import "time"

// URLSet holds every address an artifact can be reached through.
// Everything but Origin is derived from the object id by the store.
type URLSet struct {
	Origin    string `json:"origin,omitempty"`
	View      string `json:"view,omitempty"`
	Content   string `json:"content,omitempty"`
	Public    string `json:"public,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Direct    string `json:"direct,omitempty"`
}

// Artifact is one image object persisted in the object store.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	JobID     string    `json:"job_id,omitempty"`
	MimeType  string    `json:"mime_type"`
	URLs      URLSet    `json:"urls"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Tags      []string  `json:"tags,omitempty"`
	Favorite  bool      `json:"favorite"`
	Warnings  []string  `json:"warnings,omitempty"`
}
