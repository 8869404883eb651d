package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"slidesense/internal/models"
)

// CreateDeck registers an uploaded PDF with the backend and returns the record.
func (c *Client) CreateDeck(ctx context.Context, title, pdfURL string) (*models.SlideDeck, error) {
	if title == "" || pdfURL == "" {
		return nil, errors.New("title and pdf url are required")
	}
	var resp struct {
		SlideDeck models.SlideDeck `json:"slide_deck"`
	}
	err := c.do(ctx, http.MethodPost, "/api/slide-decks/upload", map[string]string{
		"title":   title,
		"pdf_url": pdfURL,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("create deck: %w", err)
	}
	if resp.SlideDeck.ID == "" {
		return nil, errors.New("create deck: backend returned no id")
	}
	return &resp.SlideDeck, nil
}

// ListDecks returns the user's decks.
func (c *Client) ListDecks(ctx context.Context) ([]models.SlideDeck, error) {
	var resp struct {
		SlideDecks []models.SlideDeck `json:"slide_decks"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/slide-decks", nil, &resp); err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return resp.SlideDecks, nil
}

// DeleteDeck removes a deck; the backend cascades to its summaries.
func (c *Client) DeleteDeck(ctx context.Context, deckID string) error {
	if deckID == "" {
		return errors.New("deck id required")
	}
	if err := c.do(ctx, http.MethodDelete, "/api/slide-decks/"+url.PathEscape(deckID), nil, nil); err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	return nil
}

// FetchSummaries loads every persisted summary for a deck in one batch, the
// bootstrap path for decks processed in a prior session.
func (c *Client) FetchSummaries(ctx context.Context, deckID string) ([]models.StudySection, error) {
	if deckID == "" {
		return nil, errors.New("deck id required")
	}
	var resp struct {
		SlideSummaries []struct {
			SlideNumber int    `json:"slide_number"`
			SummaryText string `json:"summary_text"`
		} `json:"slide_summaries"`
	}
	path := "/api/slide-summaries?slide_deck_id=" + url.QueryEscape(deckID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch summaries: %w", err)
	}

	sections := make([]models.StudySection, 0, len(resp.SlideSummaries))
	for _, s := range resp.SlideSummaries {
		// No image comes back from persisted storage; pages are recaptured lazily.
		sections = append(sections, models.StudySection{
			SlideNumber: s.SlideNumber,
			Summary:     s.SummaryText,
		})
	}
	return sections, nil
}
