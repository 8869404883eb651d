package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"slidesense/internal/auth"
	"slidesense/internal/config"
)

type staticSessions struct{}

func (staticSessions) CurrentSession(ctx context.Context) (*auth.Session, error) {
	return &auth.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := &config.Config{}
	cfg.Backend.BaseURL = server.URL
	cfg.BasicConfig.RequestTimeout = 5
	return NewClient(cfg, staticSessions{}), server
}

func TestRequestsCarryAuthHeaders(t *testing.T) {
	var gotAuth, gotRefresh string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRefresh = r.Header.Get("X-Refresh-Token")
		json.NewEncoder(w).Encode(map[string]interface{}{"slide_decks": []interface{}{}})
	})

	if _, err := client.ListDecks(context.Background()); err != nil {
		t.Fatalf("list decks: %v", err)
	}
	if gotAuth != "Bearer access-token" {
		t.Fatalf("missing bearer token, got %q", gotAuth)
	}
	if gotRefresh != "refresh-token" {
		t.Fatalf("missing refresh token header, got %q", gotRefresh)
	}
}

func TestCreateDeck(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/slide-decks/upload" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["title"] != "lecture" || req["pdf_url"] != "https://x/y.pdf" {
			t.Errorf("unexpected payload %v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"slide_deck": map[string]string{"id": "deck-1", "title": "lecture", "pdf_url": "https://x/y.pdf"},
		})
	})

	deck, err := client.CreateDeck(context.Background(), "lecture", "https://x/y.pdf")
	if err != nil {
		t.Fatalf("create deck: %v", err)
	}
	if deck.ID != "deck-1" {
		t.Fatalf("unexpected deck %+v", deck)
	}
}

func TestGenerateSummaryColdStart(t *testing.T) {
	var payload map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"slide_summary": map[string]string{"summary_text": "first slide intro"},
		})
	})

	got := client.GenerateSummary(context.Background(), "deck-1", 1, []byte("png"), nil)
	if got != "first slide intro" {
		t.Fatalf("unexpected summary %q", got)
	}
	if _, ok := payload["previous_summary"]; ok {
		t.Fatalf("cold start must not carry previous context: %v", payload)
	}
	img, _ := payload["slide_image"].(string)
	if !strings.HasPrefix(img, "data:image/png;base64,") {
		t.Fatalf("image not encoded as data url: %q", img)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(img, "data:image/png;base64,"))
	if err != nil || string(decoded) != "png" {
		t.Fatalf("image payload corrupted: %q", img)
	}
}

func TestGenerateSummaryChainsPreviousSlide(t *testing.T) {
	var payload map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"slide_summary": map[string]string{"summary_text": "builds on the intro"},
		})
	})

	got := client.GenerateSummary(context.Background(), "deck-1", 2, []byte("png2"), &PreviousSlide{
		Image:   []byte("png1"),
		Summary: "the intro",
	})
	if got != "builds on the intro" {
		t.Fatalf("unexpected summary %q", got)
	}
	if payload["previous_summary"] != "the intro" {
		t.Fatalf("previous summary not forwarded: %v", payload)
	}
	if _, ok := payload["previous_slide_image"]; !ok {
		t.Fatalf("previous slide image not forwarded: %v", payload)
	}
	if payload["slide_number"].(float64) != 2 {
		t.Fatalf("wrong slide number: %v", payload["slide_number"])
	}
}

func TestGenerateSummaryDegradesToSentinel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusBadGateway)
	})
	got := client.GenerateSummary(context.Background(), "deck-1", 3, []byte("png"), nil)
	if got != SentinelSummary {
		t.Fatalf("expected sentinel, got %q", got)
	}
}

func TestGenerateSummaryEmptyTextIsSentinel(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"slide_summary": map[string]string{"summary_text": ""},
		})
	})
	got := client.GenerateSummary(context.Background(), "deck-1", 3, []byte("png"), nil)
	if got != SentinelSummary {
		t.Fatalf("expected sentinel on empty text, got %q", got)
	}
}

func TestRegenerateSummarySendsChatContext(t *testing.T) {
	var payload map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/slide-summaries/regenerate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]string{"summary_text": "revised"})
	})

	got, err := client.RegenerateSummary(context.Background(), "deck-1", 2, "stale", []string{"user: why?"})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if got != "revised" {
		t.Fatalf("unexpected summary %q", got)
	}
	if payload["summary_text"] != "stale" {
		t.Fatalf("current summary not forwarded: %v", payload)
	}
	ctxLines, _ := payload["chat_context"].([]interface{})
	if len(ctxLines) != 1 || ctxLines[0] != "user: why?" {
		t.Fatalf("chat context not forwarded: %v", payload["chat_context"])
	}
}

func TestRegenerateSummaryErrorSurfaces(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	if _, err := client.RegenerateSummary(context.Background(), "deck-1", 2, "stale", nil); err == nil {
		t.Fatalf("expected error from failed regenerate")
	}
}

func TestChatPayloadShape(t *testing.T) {
	var payload map[string]interface{}
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&payload)
		json.NewEncoder(w).Encode(map[string]string{"response": "it means X"})
	})

	got, err := client.Chat(context.Background(), "deck-1", 2, "the summary", []string{"user: hi"}, "what does it mean?")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if got != "it means X" {
		t.Fatalf("unexpected reply %q", got)
	}
	for _, key := range []string{"slideDeckId", "slideNumber", "slideSummary", "chatHistory", "userMessage"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("chat payload missing %s: %v", key, payload)
		}
	}
	if payload["slideSummary"] != "the summary" {
		t.Fatalf("summary not grounded in payload: %v", payload["slideSummary"])
	}
}

func TestFetchSummaries(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("slide_deck_id"); got != "deck-1" {
			t.Errorf("missing deck id query, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"slide_summaries": []map[string]interface{}{
				{"slide_number": 1, "summary_text": "one"},
				{"slide_number": 2, "summary_text": "two"},
			},
		})
	})

	sections, err := client.FetchSummaries(context.Background(), "deck-1")
	if err != nil {
		t.Fatalf("fetch summaries: %v", err)
	}
	if len(sections) != 2 || sections[1].Summary != "two" {
		t.Fatalf("unexpected sections %+v", sections)
	}
	if sections[0].HasImage() {
		t.Fatalf("persisted summaries must come back without images")
	}
}

func TestDeleteDeckEscapesID(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	})
	if err := client.DeleteDeck(context.Background(), "deck/1"); err != nil {
		t.Fatalf("delete deck: %v", err)
	}
	if gotPath != "/api/slide-decks/deck%2F1" {
		t.Fatalf("deck id not escaped: %s", gotPath)
	}
}
