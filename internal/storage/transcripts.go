package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slidesense/internal/models"
)

// Service persists what the backend does not: the per-slide chat transcripts
// and the local record of signed-in users.
type Service struct {
	db *sql.DB
}

// NewService wraps an open database.
func NewService(db *sql.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	return &Service{db: db}, nil
}

// RecordUser inserts the user on first sign-in; later sign-ins are no-ops.
func (s *Service) RecordUser(ctx context.Context, user models.User) error {
	if user.ID == "" {
		return errors.New("user id required")
	}
	var exists string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ?`, user.ID).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lookup user: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("record user: %w", err)
	}
	return nil
}

// AppendMessage stores one chat turn for a slide.
func (s *Service) AppendMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	if msg.DeckID == "" || msg.SlideNumber < 1 {
		return nil, errors.New("deck id and slide number are required")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (deck_id, slide_number, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.DeckID, msg.SlideNumber, msg.Role, msg.Content, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("chat message id: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return &msg, nil
}

// Transcript returns the ordered chat history for one slide of a deck.
func (s *Service) Transcript(ctx context.Context, deckID string, slideNumber int) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, deck_id, slide_number, role, content, created_at
		 FROM chat_messages WHERE deck_id = ? AND slide_number = ? ORDER BY created_at ASC, id ASC`,
		deckID, slideNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.DeckID, &m.SlideNumber, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// TranscriptLines flattens a slide's transcript to "role: content" lines,
// the shape the backend chat and regenerate endpoints expect.
func (s *Service) TranscriptLines(ctx context.Context, deckID string, slideNumber int) ([]string, error) {
	messages, err := s.Transcript(ctx, deckID, slideNumber)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return lines, nil
}

// DeleteDeckTranscripts removes every transcript for a deck, used on deck delete.
func (s *Service) DeleteDeckTranscripts(ctx context.Context, deckID string) error {
	if deckID == "" {
		return errors.New("deck id required")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE deck_id = ?`, deckID); err != nil {
		return fmt.Errorf("delete transcripts: %w", err)
	}
	return nil
}
