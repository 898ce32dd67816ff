package models

// User is the slice of an account the board subsystem reads and writes.
type User struct {
	ID       string `json:"id"`
	BoardID  string `json:"boardId,omitempty"` // empty when no board is paired
	IsPaused bool   `json:"isPaused"`
}
