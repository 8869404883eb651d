package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// SentinelSummary marks a slide whose generation failed. The slide still
// counts as processed so navigation is never blocked on a flaky backend.
const SentinelSummary = "Unable to generate summary"

// PreviousSlide carries the chained context for summary generation: the
// predecessor's raster image and its already-generated summary.
type PreviousSlide struct {
	Image   []byte
	Summary string
}

func encodeImage(img []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
}

// GenerateSummary asks the backend to summarize one slide. When prev is nil
// the request is a cold start for slide 1; otherwise the predecessor's image
// and summary condition the generation. The backend persists the result
// keyed by (deck id, slide number). Transport and backend failures degrade
// to SentinelSummary rather than an error.
func (c *Client) GenerateSummary(ctx context.Context, deckID string, slideNumber int, image []byte, prev *PreviousSlide) string {
	payload := map[string]interface{}{
		"slide_deck_id": deckID,
		"slide_number":  slideNumber,
		"slide_image":   encodeImage(image),
	}
	if prev != nil {
		payload["previous_summary"] = prev.Summary
		if len(prev.Image) > 0 {
			payload["previous_slide_image"] = encodeImage(prev.Image)
		}
	}

	var resp struct {
		SlideSummary struct {
			SummaryText string `json:"summary_text"`
		} `json:"slide_summary"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/slide-summaries/generate", payload, &resp); err != nil {
		log.Printf("generate summary for slide %d failed: %v", slideNumber, err)
		return SentinelSummary
	}
	if resp.SlideSummary.SummaryText == "" {
		return SentinelSummary
	}
	return resp.SlideSummary.SummaryText
}

// RegenerateSummary asks the backend for a revised summary of one slide,
// conditioned on the current summary text and the accumulated chat transcript.
func (c *Client) RegenerateSummary(ctx context.Context, deckID string, slideNumber int, summaryText string, chatContext []string) (string, error) {
	if deckID == "" {
		return "", errors.New("deck id required")
	}
	var resp struct {
		SummaryText string `json:"summary_text"`
	}
	err := c.do(ctx, http.MethodPost, "/api/slide-summaries/regenerate", map[string]interface{}{
		"slide_deck_id": deckID,
		"slide_number":  slideNumber,
		"summary_text":  summaryText,
		"chat_context":  chatContext,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("regenerate summary: %w", err)
	}
	if resp.SummaryText == "" {
		return "", errors.New("regenerate summary: backend returned empty text")
	}
	return resp.SummaryText, nil
}

// Chat sends one user message grounded in the current slide's summary and
// the running transcript, returning the assistant reply.
func (c *Client) Chat(ctx context.Context, deckID string, slideNumber int, slideSummary string, history []string, userMessage string) (string, error) {
	if userMessage == "" {
		return "", errors.New("message required")
	}
	var resp struct {
		Response string `json:"response"`
	}
	err := c.do(ctx, http.MethodPost, "/api/chat", map[string]interface{}{
		"slideDeckId":  deckID,
		"slideNumber":  slideNumber,
		"slideSummary": slideSummary,
		"chatHistory":  history,
		"userMessage":  userMessage,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return resp.Response, nil
}
