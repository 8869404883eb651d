package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"slidesense/internal/backend"
	"slidesense/internal/models"
	"slidesense/internal/rasterizer"
)

// DeckRepository performs deck CRUD and bulk summary fetches against the backend.
type DeckRepository interface {
	CreateDeck(ctx context.Context, title, pdfURL string) (*models.SlideDeck, error)
	ListDecks(ctx context.Context) ([]models.SlideDeck, error)
	DeleteDeck(ctx context.Context, deckID string) error
	FetchSummaries(ctx context.Context, deckID string) ([]models.StudySection, error)
	FetchPDF(ctx context.Context, url string) ([]byte, error)
}

// Summarizer generates, regenerates, and chats about slide summaries.
type Summarizer interface {
	GenerateSummary(ctx context.Context, deckID string, slideNumber int, image []byte, prev *backend.PreviousSlide) string
	RegenerateSummary(ctx context.Context, deckID string, slideNumber int, summaryText string, chatContext []string) (string, error)
	Chat(ctx context.Context, deckID string, slideNumber int, slideSummary string, history []string, userMessage string) (string, error)
}

// ObjectStore uploads deck documents and returns their public URLs.
type ObjectStore interface {
	UploadPDF(ctx context.Context, userID, filename string, data []byte) (string, error)
}

// TranscriptStore persists per-slide chat history.
type TranscriptStore interface {
	AppendMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error)
	Transcript(ctx context.Context, deckID string, slideNumber int) ([]models.ChatMessage, error)
	TranscriptLines(ctx context.Context, deckID string, slideNumber int) ([]string, error)
	DeleteDeckTranscripts(ctx context.Context, deckID string) error
}

// Rasterizer renders slides of the open document.
type Rasterizer interface {
	PageCount() int
	Capture(pageNumber int) ([]byte, error)
	Close() error
}

// DocumentOpener loads a PDF into a Rasterizer.
type DocumentOpener func(data []byte) (Rasterizer, error)

func defaultOpener(data []byte) (Rasterizer, error) {
	doc, err := rasterizer.Open(data)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ErrBusy rejects deck selection while an upload or processing run is in flight.
var ErrBusy = errors.New("deck operation already in progress")

// ErrNoDeck is returned by operations that require an active deck.
var ErrNoDeck = errors.New("no active deck")

// Snapshot is the read model handed to the presentation layer.
type Snapshot struct {
	Status       models.ProcessingStatus `json:"status"`
	Deck         *models.SlideDeck       `json:"deck,omitempty"`
	CurrentSlide int                     `json:"current_slide"`
	TotalSlides  int                     `json:"total_slides"`
	Sections     []models.StudySection   `json:"sections"`
	LastError    string                  `json:"last_error,omitempty"`
}

// Session owns the upload->process->navigate lifecycle for the single active
// deck: the study guide, the image cache, the navigation cursor, and the
// whole-deck processing status. All backend work runs as a sequential
// pipeline; at most one forward-processing operation is in flight at a time.
type Session struct {
	repo        DeckRepository
	summarizer  Summarizer
	store       ObjectStore
	transcripts TranscriptStore
	images      *rasterizer.Cache
	openDoc     DocumentOpener

	mu          sync.Mutex
	status      models.ProcessingStatus
	deck        *models.SlideDeck
	doc         Rasterizer
	guide       *studyGuide
	cursor      int
	totalSlides int
	lastErr     string
	// epoch increments on every reset/deck switch so a summarization that
	// outlives its session cannot write into the next one.
	epoch uint64
}

// New constructs an idle session.
func New(repo DeckRepository, summarizer Summarizer, store ObjectStore, transcripts TranscriptStore, images *rasterizer.Cache) *Session {
	if images == nil {
		images = rasterizer.NewCache(nil)
	}
	return &Session{
		repo:        repo,
		summarizer:  summarizer,
		store:       store,
		transcripts: transcripts,
		images:      images,
		openDoc:     defaultOpener,
		status:      models.StatusIdle,
		guide:       newStudyGuide(),
		cursor:      1,
	}
}

// SetDocumentOpener overrides how PDFs are loaded, used by tests.
func (s *Session) SetDocumentOpener(opener DocumentOpener) {
	if opener != nil {
		s.openDoc = opener
	}
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Status:       s.status,
		Deck:         s.deck,
		CurrentSlide: s.cursor,
		TotalSlides:  s.totalSlides,
		Sections:     s.guide.snapshot(),
		LastError:    s.lastErr,
	}
}

// UploadDeck stores a new PDF, registers the deck with the backend, and runs
// initial processing. Rejected while another upload or processing run is active.
func (s *Session) UploadDeck(ctx context.Context, userID, filename string, data []byte) (Snapshot, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return s.Snapshot(), errors.New("only PDF files are supported")
	}

	s.mu.Lock()
	if s.status == models.StatusUploading || s.status == models.StatusProcessing {
		s.mu.Unlock()
		return s.Snapshot(), ErrBusy
	}
	s.discardLocked()
	s.status = models.StatusUploading
	s.mu.Unlock()

	pdfURL, err := s.store.UploadPDF(ctx, userID, filename, data)
	if err != nil {
		return s.fail(fmt.Errorf("upload pdf: %w", err))
	}

	title := strings.TrimSuffix(filename, ".pdf")
	title = strings.TrimSuffix(title, ".PDF")
	deck, err := s.repo.CreateDeck(ctx, title, pdfURL)
	if err != nil {
		return s.fail(fmt.Errorf("register deck: %w", err))
	}

	return s.processDeck(ctx, deck, data)
}

// OpenDeck loads an existing deck from the deck list by id.
func (s *Session) OpenDeck(ctx context.Context, deckID string) (Snapshot, error) {
	s.mu.Lock()
	if s.status == models.StatusUploading || s.status == models.StatusProcessing {
		s.mu.Unlock()
		return s.Snapshot(), ErrBusy
	}
	s.discardLocked()
	s.status = models.StatusUploading
	s.mu.Unlock()

	decks, err := s.repo.ListDecks(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("load deck list: %w", err))
	}
	var deck *models.SlideDeck
	for i := range decks {
		if decks[i].ID == deckID {
			deck = &decks[i]
			break
		}
	}
	if deck == nil {
		return s.fail(fmt.Errorf("deck %s not found", deckID))
	}

	data, err := s.repo.FetchPDF(ctx, deck.PDFURL)
	if err != nil {
		return s.fail(fmt.Errorf("fetch deck document: %w", err))
	}

	return s.processDeck(ctx, deck, data)
}

// processDeck runs the shared select-deck pipeline: open the document, check
// for persisted summaries (the bootstrap case), and otherwise cold-start
// slide 1 with an unconditioned generation.
func (s *Session) processDeck(ctx context.Context, deck *models.SlideDeck, data []byte) (Snapshot, error) {
	s.mu.Lock()
	s.deck = deck
	s.status = models.StatusProcessing
	epoch := s.epoch
	s.mu.Unlock()

	doc, err := s.openDoc(data)
	if err != nil {
		return s.fail(fmt.Errorf("open document: %w", err))
	}
	if doc.PageCount() < 1 {
		doc.Close()
		return s.fail(errors.New("document has no pages"))
	}

	sections, err := s.repo.FetchSummaries(ctx, deck.ID)
	if err != nil {
		// Missing persisted summaries is the normal cold-start path.
		log.Printf("fetch persisted summaries for deck %s failed: %v", deck.ID, err)
		sections = nil
	}

	var prepared []models.StudySection
	if len(sections) > 0 {
		prepared = sections
		// Only slide 1 is captured for display; remaining images come back
		// lazily as the user navigates.
		img, err := s.captureWith(ctx, doc, deck.ID, 1)
		if err != nil {
			log.Printf("capture slide 1 for deck %s failed: %v", deck.ID, err)
		} else {
			for i := range prepared {
				if prepared[i].SlideNumber == 1 {
					prepared[i].Image = img
				}
			}
		}
	} else {
		img, err := s.captureWith(ctx, doc, deck.ID, 1)
		if err != nil {
			log.Printf("capture slide 1 for deck %s failed: %v", deck.ID, err)
			img = nil
		}
		summary := s.summarizer.GenerateSummary(ctx, deck.ID, 1, img, nil)
		prepared = []models.StudySection{{SlideNumber: 1, Image: img, Summary: summary}}
	}

	s.mu.Lock()
	if s.epoch != epoch {
		// The session was discarded while the deck was being prepared.
		snap := s.snapshotLocked()
		s.mu.Unlock()
		doc.Close()
		return snap, nil
	}
	s.guide.load(prepared)
	s.doc = doc
	s.totalSlides = doc.PageCount()
	s.cursor = 1
	s.status = models.StatusComplete
	s.lastErr = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, nil
}

// Navigate moves the cursor. Backward moves and moves onto already-processed
// slides are immediate. A forward move onto the next unprocessed slide runs
// the chained-context pipeline; any other forward move, or a forward move
// while processing, is silently ignored.
func (s *Session) Navigate(ctx context.Context, target int) Snapshot {
	s.mu.Lock()

	if s.deck == nil || target < 1 || target > s.totalSlides || target == s.cursor {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	// Backward is always free, even mid-processing.
	if target < s.cursor {
		s.cursor = target
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	// Already processed: move without any generation.
	if s.guide.has(target) {
		s.cursor = target
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	// Forward onto unprocessed ground needs an idle pipeline and a
	// contiguous predecessor.
	if s.status != models.StatusComplete || !s.guide.has(target-1) {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	deck := s.deck
	doc := s.doc
	epoch := s.epoch
	s.cursor = target
	s.status = models.StatusProcessing
	s.mu.Unlock()

	s.processSlide(ctx, deck, doc, epoch, target)

	return s.Snapshot()
}

// processSlide captures the target slide, restores the predecessor's image
// when the cache lost it (bootstrap-loaded decks), and generates the
// summary with chained context. Runs unlocked so backward navigation stays
// responsive; the result is applied last-write-wins.
func (s *Session) processSlide(ctx context.Context, deck *models.SlideDeck, doc Rasterizer, epoch uint64, target int) {
	img, err := s.captureWith(ctx, doc, deck.ID, target)
	if err != nil {
		log.Printf("capture slide %d failed: %v", target, err)
		img = nil
	}

	prevImg, ok := s.images.Get(ctx, deck.ID, target-1)
	if !ok {
		prevImg, err = s.captureWith(ctx, doc, deck.ID, target-1)
		if err != nil {
			log.Printf("capture predecessor slide %d failed: %v", target-1, err)
			prevImg = nil
		}
	}

	prevSection, _ := s.guide.get(target - 1)
	summary := s.summarizer.GenerateSummary(ctx, deck.ID, target, img, &backend.PreviousSlide{
		Image:   prevImg,
		Summary: prevSection.Summary,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		// The session was discarded while we were in flight; the result
		// belongs to a guide that no longer exists.
		if s.doc != doc {
			doc.Close()
		}
		return
	}
	s.guide.put(models.StudySection{SlideNumber: target, Image: img, Summary: summary})
	s.status = models.StatusComplete
}

// RegenerateSummary replaces the current slide's summary in place using the
// accumulated chat transcript as context. The image and every other section
// are untouched, and downstream summaries are not re-chained.
func (s *Session) RegenerateSummary(ctx context.Context) (models.StudySection, error) {
	s.mu.Lock()
	deck := s.deck
	slide := s.cursor
	s.mu.Unlock()

	if deck == nil {
		return models.StudySection{}, ErrNoDeck
	}
	sec, ok := s.guide.get(slide)
	if !ok {
		return models.StudySection{}, fmt.Errorf("slide %d has no summary to regenerate", slide)
	}

	chatContext, err := s.transcripts.TranscriptLines(ctx, deck.ID, slide)
	if err != nil {
		log.Printf("load transcript for regenerate failed: %v", err)
		chatContext = nil
	}

	text, err := s.summarizer.RegenerateSummary(ctx, deck.ID, slide, sec.Summary, chatContext)
	if err != nil {
		return models.StudySection{}, err
	}

	s.guide.replaceSummary(slide, text)
	sec.Summary = text
	return sec, nil
}

// Chat sends a user message grounded in the current slide's summary and
// records both turns of the transcript.
func (s *Session) Chat(ctx context.Context, message string) (models.ChatMessage, error) {
	s.mu.Lock()
	deck := s.deck
	slide := s.cursor
	s.mu.Unlock()

	if deck == nil {
		return models.ChatMessage{}, ErrNoDeck
	}
	sec, _ := s.guide.get(slide)

	history, err := s.transcripts.TranscriptLines(ctx, deck.ID, slide)
	if err != nil {
		log.Printf("load transcript failed: %v", err)
		history = nil
	}

	reply, err := s.summarizer.Chat(ctx, deck.ID, slide, sec.Summary, history, message)
	if err != nil {
		return models.ChatMessage{}, err
	}

	if _, err := s.transcripts.AppendMessage(ctx, models.ChatMessage{
		DeckID: deck.ID, SlideNumber: slide, Role: models.RoleUser, Content: message,
	}); err != nil {
		log.Printf("persist user message failed: %v", err)
	}
	aiMsg, err := s.transcripts.AppendMessage(ctx, models.ChatMessage{
		DeckID: deck.ID, SlideNumber: slide, Role: models.RoleAssistant, Content: reply,
	})
	if err != nil {
		log.Printf("persist assistant message failed: %v", err)
		return models.ChatMessage{
			DeckID: deck.ID, SlideNumber: slide, Role: models.RoleAssistant, Content: reply,
		}, nil
	}
	return *aiMsg, nil
}

// Transcript returns the chat history for the current slide.
func (s *Session) Transcript(ctx context.Context) ([]models.ChatMessage, error) {
	s.mu.Lock()
	deck := s.deck
	slide := s.cursor
	s.mu.Unlock()
	if deck == nil {
		return nil, ErrNoDeck
	}
	return s.transcripts.Transcript(ctx, deck.ID, slide)
}

// SlideImage returns the cached raster image for a slide of the active deck.
func (s *Session) SlideImage(ctx context.Context, slideNumber int) ([]byte, error) {
	s.mu.Lock()
	deck := s.deck
	s.mu.Unlock()
	if deck == nil {
		return nil, ErrNoDeck
	}
	if img, ok := s.images.Get(ctx, deck.ID, slideNumber); ok {
		return img, nil
	}
	return nil, fmt.Errorf("no image captured for slide %d", slideNumber)
}

// ListDecks returns the user's decks from the backend.
func (s *Session) ListDecks(ctx context.Context) ([]models.SlideDeck, error) {
	return s.repo.ListDecks(ctx)
}

// DeleteDeck removes a deck everywhere. Deleting the active deck resets the
// session to idle with an empty guide and the cursor back at slide 1.
func (s *Session) DeleteDeck(ctx context.Context, deckID string) error {
	if err := s.repo.DeleteDeck(ctx, deckID); err != nil {
		return err
	}
	if err := s.transcripts.DeleteDeckTranscripts(ctx, deckID); err != nil {
		log.Printf("delete transcripts for deck %s failed: %v", deckID, err)
	}
	s.images.Purge(ctx, deckID)

	s.mu.Lock()
	if s.deck != nil && s.deck.ID == deckID {
		s.discardLocked()
	}
	s.mu.Unlock()
	return nil
}

// Reset returns to the upload screen, discarding all session state. This is
// also the explicit user retry out of the error status.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
	return s.snapshotLocked()
}

// discardLocked tears the session down to idle. Caller holds s.mu.
func (s *Session) discardLocked() {
	if s.deck != nil {
		s.images.Drop(s.deck.ID)
	}
	if s.doc != nil && s.status != models.StatusProcessing {
		s.doc.Close()
	}
	s.doc = nil
	s.deck = nil
	s.guide.reset()
	s.cursor = 1
	s.totalSlides = 0
	s.status = models.StatusIdle
	s.lastErr = ""
	s.epoch++
}

// fail records a deck-level failure and surfaces it with error status.
func (s *Session) fail(err error) (Snapshot, error) {
	log.Printf("deck processing failed: %v", err)
	s.mu.Lock()
	s.status = models.StatusError
	s.lastErr = err.Error()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, err
}

// captureWith rasterizes a slide through the image cache: a page captured
// once this session (or cached from a prior one) is never rendered again.
func (s *Session) captureWith(ctx context.Context, doc Rasterizer, deckID string, slideNumber int) ([]byte, error) {
	if img, ok := s.images.Get(ctx, deckID, slideNumber); ok {
		return img, nil
	}
	img, err := doc.Capture(slideNumber)
	if err != nil {
		return nil, err
	}
	s.images.Put(ctx, deckID, slideNumber, img)
	return img, nil
}
