package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"slidesense/internal/auth"
	"slidesense/internal/models"
	"slidesense/internal/session"
)

// SessionManager drives the active deck lifecycle on behalf of the routes.
type SessionManager interface {
	Snapshot() session.Snapshot
	UploadDeck(ctx context.Context, userID, filename string, data []byte) (session.Snapshot, error)
	OpenDeck(ctx context.Context, deckID string) (session.Snapshot, error)
	Navigate(ctx context.Context, target int) session.Snapshot
	RegenerateSummary(ctx context.Context) (models.StudySection, error)
	Chat(ctx context.Context, message string) (models.ChatMessage, error)
	Transcript(ctx context.Context) ([]models.ChatMessage, error)
	SlideImage(ctx context.Context, slideNumber int) ([]byte, error)
	ListDecks(ctx context.Context) ([]models.SlideDeck, error)
	DeleteDeck(ctx context.Context, deckID string) error
	Reset() session.Snapshot
}

// Authenticator exchanges sign-in credentials for provider sessions and
// guards the protected routes.
type Authenticator interface {
	SignIn(ctx context.Context, provider, credential, nonce string) (*auth.Session, error)
	SignOut(ctx context.Context)
	Middleware() gin.HandlerFunc
}

// UserStore records signed-in users locally.
type UserStore interface {
	RecordUser(ctx context.Context, user models.User) error
}

// Handler wires HTTP routes to the deck session and auth services.
type Handler struct {
	session        SessionManager
	auth           Authenticator
	users          UserStore
	maxUploadBytes int64
}

// NewHandler constructs a Handler instance.
func NewHandler(deckSession SessionManager, authService Authenticator, users UserStore, maxUploadMB int) *Handler {
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	return &Handler{
		session:        deckSession,
		auth:           authService,
		users:          users,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/auth/sign-in", h.signIn)

	protected := api.Group("")
	protected.Use(h.auth.Middleware())
	protected.POST("/auth/sign-out", h.signOut)
	protected.GET("/decks", h.listDecks)
	protected.POST("/decks", h.uploadDeck)
	protected.POST("/decks/:id/open", h.openDeck)
	protected.DELETE("/decks/:id", h.deleteDeck)
	protected.GET("/session", h.sessionState)
	protected.POST("/session/navigate", h.navigate)
	protected.POST("/session/regenerate", h.regenerateSummary)
	protected.POST("/session/chat", h.chat)
	protected.GET("/session/transcript", h.transcript)
	protected.GET("/session/slides/:number/image", h.slideImage)
	protected.POST("/session/reset", h.resetSession)
}

func (h *Handler) authorizedUserID(c *gin.Context) (string, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return "", false
	}
	return userID, true
}

type signInRequest struct {
	Provider   string `json:"provider"`
	Credential string `json:"credential"`
	Nonce      string `json:"nonce"`
}

func (h *Handler) signIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = "google"
	}
	if strings.TrimSpace(req.Credential) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "credential is required"})
		return
	}
	authSession, err := h.auth.SignIn(c.Request.Context(), provider, req.Credential, req.Nonce)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	if err := h.users.RecordUser(c.Request.Context(), authSession.User); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record user failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":       authSession.User,
		"expires_at": authSession.ExpiresAt,
	})
}

func (h *Handler) signOut(c *gin.Context) {
	h.session.Reset()
	h.auth.SignOut(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) listDecks(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	decks, err := h.session.ListDecks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if decks == nil {
		decks = make([]models.SlideDeck, 0)
	}
	c.JSON(http.StatusOK, gin.H{"slide_decks": decks})
}

func (h *Handler) uploadDeck(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	filename := filepath.Base(file.Filename)
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only PDF files are supported"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}

	snap, err := h.session.UploadDeck(c.Request.Context(), userID, filename, data)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "another deck is being processed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": snap})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": snap})
}

func (h *Handler) openDeck(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	deckID := strings.TrimSpace(c.Param("id"))
	if deckID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deck id"})
		return
	}
	snap, err := h.session.OpenDeck(c.Request.Context(), deckID)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "another deck is being processed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "session": snap})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": snap})
}

func (h *Handler) deleteDeck(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	deckID := strings.TrimSpace(c.Param("id"))
	if deckID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deck id"})
		return
	}
	if err := h.session.DeleteDeck(c.Request.Context(), deckID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) sessionState(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": h.session.Snapshot()})
}

type navigateRequest struct {
	SlideNumber int `json:"slide_number"`
}

func (h *Handler) navigate(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	var req navigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SlideNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slide_number must be positive"})
		return
	}
	snap := h.session.Navigate(c.Request.Context(), req.SlideNumber)
	c.JSON(http.StatusOK, gin.H{"session": snap})
}

func (h *Handler) regenerateSummary(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	sec, err := h.session.RegenerateSummary(c.Request.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoDeck) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active deck"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"slide_number": sec.SlideNumber,
		"summary":      sec.Summary,
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chat(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}
	reply, err := h.session.Chat(c.Request.Context(), message)
	if err != nil {
		if errors.Is(err, session.ErrNoDeck) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active deck"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": reply})
}

func (h *Handler) transcript(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	messages, err := h.session.Transcript(c.Request.Context())
	if err != nil {
		if errors.Is(err, session.ErrNoDeck) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active deck"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = make([]models.ChatMessage, 0)
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) slideImage(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	slideNumber, err := strconv.Atoi(c.Param("number"))
	if err != nil || slideNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slide number"})
		return
	}
	img, err := h.session.SlideImage(c.Request.Context(), slideNumber)
	if err != nil {
		if errors.Is(err, session.ErrNoDeck) {
			c.JSON(http.StatusConflict, gin.H{"error": "no active deck"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

func (h *Handler) resetSession(c *gin.Context) {
	if _, ok := h.authorizedUserID(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": h.session.Reset()})
}
