package chat

import "time"

// Role is the author of a stored conversation turn, named the way the model APIs expect.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Session captures a transient anonymous conversation on the server.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Turn persists one side of an exchange for model context.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Crisis    bool      `json:"crisis,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
