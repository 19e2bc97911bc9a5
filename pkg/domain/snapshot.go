package domain

import "time"

// Snapshot is the persisted view of a session.
// The registry saves it on eviction and restores it when the client comes back.
type Snapshot struct {
	ClientID string            `json:"client_id"`
	Options  map[string]string `json:"options,omitempty"`
	Model    *ModelRoot        `json:"model,omitempty"`
	Revision int64             `json:"revision"`
	SavedAt  time.Time         `json:"saved_at"`
}
