package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn of the slide-grounded chat transcript.
type ChatMessage struct {
	ID          int64     `json:"id"`
	DeckID      string    `json:"deck_id"`
	SlideNumber int       `json:"slide_number"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}
