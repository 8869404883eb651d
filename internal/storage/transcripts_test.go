package storage

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"slidesense/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestRecordUserIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user := models.User{ID: "user-1", Email: "a@b.c", DisplayName: "A"}

	if err := svc.RecordUser(ctx, user); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := svc.RecordUser(ctx, user); err != nil {
		t.Fatalf("second record must be a no-op: %v", err)
	}
}

func TestRecordUserRequiresID(t *testing.T) {
	svc := newTestService(t)
	if err := svc.RecordUser(context.Background(), models.User{}); err == nil {
		t.Fatalf("expected rejection of empty user id")
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.AppendMessage(ctx, models.ChatMessage{
		DeckID: "deck-1", SlideNumber: 2, Role: models.RoleUser, Content: "why is this true?",
	})
	if err != nil {
		t.Fatalf("append user message: %v", err)
	}
	if first.ID == 0 || first.CreatedAt.IsZero() {
		t.Fatalf("message not stamped: %+v", first)
	}
	if _, err := svc.AppendMessage(ctx, models.ChatMessage{
		DeckID: "deck-1", SlideNumber: 2, Role: models.RoleAssistant, Content: "because of the lemma",
	}); err != nil {
		t.Fatalf("append assistant message: %v", err)
	}
	// A different slide's transcript stays separate.
	if _, err := svc.AppendMessage(ctx, models.ChatMessage{
		DeckID: "deck-1", SlideNumber: 3, Role: models.RoleUser, Content: "unrelated",
	}); err != nil {
		t.Fatalf("append other slide: %v", err)
	}

	messages, err := svc.Transcript(ctx, "deck-1", 2)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != models.RoleUser || messages[1].Role != models.RoleAssistant {
		t.Fatalf("transcript out of order: %+v", messages)
	}

	lines, err := svc.TranscriptLines(ctx, "deck-1", 2)
	if err != nil {
		t.Fatalf("transcript lines: %v", err)
	}
	if len(lines) != 2 || lines[0] != "user: why is this true?" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestAppendMessageValidation(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.AppendMessage(context.Background(), models.ChatMessage{SlideNumber: 1}); err == nil {
		t.Fatalf("expected rejection without deck id")
	}
	if _, err := svc.AppendMessage(context.Background(), models.ChatMessage{DeckID: "d", SlideNumber: 0}); err == nil {
		t.Fatalf("expected rejection of slide number 0")
	}
}

func TestDeleteDeckTranscripts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for _, deck := range []string{"deck-1", "deck-2"} {
		if _, err := svc.AppendMessage(ctx, models.ChatMessage{
			DeckID: deck, SlideNumber: 1, Role: models.RoleUser, Content: "hi",
		}); err != nil {
			t.Fatalf("seed %s: %v", deck, err)
		}
	}

	if err := svc.DeleteDeckTranscripts(ctx, "deck-1"); err != nil {
		t.Fatalf("delete transcripts: %v", err)
	}
	gone, _ := svc.Transcript(ctx, "deck-1", 1)
	if len(gone) != 0 {
		t.Fatalf("deck-1 transcripts survived delete")
	}
	kept, _ := svc.Transcript(ctx, "deck-2", 1)
	if len(kept) != 1 {
		t.Fatalf("deck-2 transcripts lost")
	}
}
