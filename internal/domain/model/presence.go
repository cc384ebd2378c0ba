package model

import "time"

// Presence is an ephemeral liveness record for one browser tab or client
// session viewing a project. It is not persisted beyond the liveness window.
type Presence struct {
	ID        RecordID  `json:"id"`
	ProjectID string    `json:"project_id"`
	SessionID string    `json:"session_id"`
	UserName  string    `json:"user_name"`
	UserColor string    `json:"user_color"`
	LastSeen  time.Time `json:"last_seen"`
}
