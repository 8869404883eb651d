package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"slidesense/internal/auth"
	"slidesense/internal/config"
)

// SessionSource provides the bearer token for storage uploads.
type SessionSource interface {
	CurrentSession(ctx context.Context) (*auth.Session, error)
}

// Store uploads PDF binaries to the hosted object store and hands back
// public URLs that become deck document references.
type Store struct {
	baseURL    string
	bucket     string
	timeout    time.Duration
	httpClient *http.Client
	sessions   SessionSource
}

// NewStore constructs the object store client from app config.
func NewStore(cfg *config.Config, sessions SessionSource) *Store {
	return &Store{
		baseURL:    cfg.Storage.BaseURL,
		bucket:     cfg.Storage.Bucket,
		timeout:    time.Duration(cfg.BasicConfig.RequestTimeout) * time.Second,
		httpClient: &http.Client{},
		sessions:   sessions,
	}
}

// UploadPDF stores the document under a key namespaced by user id with a
// fresh unique name, preserving the original extension, and returns the
// public URL.
func (s *Store) UploadPDF(ctx context.Context, userID, filename string, data []byte) (string, error) {
	if userID == "" {
		return "", errors.New("user id required")
	}
	if len(data) == 0 {
		return "", errors.New("empty document")
	}
	session, err := s.sessions.CurrentSession(ctx)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".pdf"
	}
	key := fmt.Sprintf("%s/%s%s", userID, uuid.NewString(), ext)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload pdf failed (%d): %s", resp.StatusCode, detail)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key), nil
}
