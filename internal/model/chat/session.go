package chat

import "time"

// Session captures a transient anonymous conversation. It owns exactly one transcript
// and lives only as long as the process.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
