package models

import "time"

// SlideDeck is a user-uploaded PDF registered with the study backend.
type SlideDeck struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	PDFURL string `json:"pdf_url"`
}

// ProcessingStatus is the whole-deck lifecycle status. It is not tracked
// per slide; a deck is either being worked on or navigable.
type ProcessingStatus string

const (
	StatusIdle       ProcessingStatus = "idle"
	StatusUploading  ProcessingStatus = "uploading"
	StatusProcessing ProcessingStatus = "processing"
	StatusComplete   ProcessingStatus = "complete"
	StatusError      ProcessingStatus = "error"
)

// User mirrors the identity-provider account recorded locally on first sign-in.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}
