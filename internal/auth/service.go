package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"slidesense/internal/config"
	"slidesense/internal/models"
	"slidesense/internal/redis"
)

const sessionCacheKey = "slidesense:session:current"

// ErrNoSession is returned when no identity-provider session is active.
var ErrNoSession = errors.New("no active session")

// Session is the identity-provider session backing every backend call.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         models.User
}

// Expired reports whether the access token is past its lifetime.
func (s *Session) Expired() bool {
	return s == nil || time.Now().UTC().After(s.ExpiresAt)
}

// Service exchanges federated credential tokens for provider sessions and
// keeps the current session available to the rest of the service.
type Service struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	rdb        *redis.Client

	mu      sync.RWMutex
	current *Session
}

// NewService constructs the auth service from app config. rdb may be nil;
// sessions then live only in process memory.
func NewService(cfg *config.Config, rdb *redis.Client) *Service {
	timeout := time.Duration(cfg.BasicConfig.RequestTimeout) * time.Second
	return &Service{
		baseURL:    cfg.Auth.BaseURL,
		anonKey:    cfg.Auth.AnonKey,
		httpClient: &http.Client{Timeout: timeout},
		rdb:        rdb,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		ID           string `json:"id"`
		Email        string `json:"email"`
		UserMetadata struct {
			FullName string `json:"full_name"`
		} `json:"user_metadata"`
	} `json:"user"`
}

// SignIn exchanges a federated credential token (plus the sign-in nonce) for
// a provider session and makes it current.
func (s *Service) SignIn(ctx context.Context, provider, credential, nonce string) (*Session, error) {
	if credential == "" {
		return nil, errors.New("credential token required")
	}
	payload := map[string]string{
		"provider": provider,
		"id_token": credential,
	}
	if nonce != "" {
		payload["nonce"] = nonce
	}
	tok, err := s.tokenRequest(ctx, "id_token", payload)
	if err != nil {
		return nil, err
	}
	session := s.sessionFromToken(tok)
	s.setCurrent(ctx, session)
	return session, nil
}

// Refresh exchanges the refresh token for a fresh session.
func (s *Service) Refresh(ctx context.Context) (*Session, error) {
	current, err := s.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	tok, err := s.tokenRequest(ctx, "refresh_token", map[string]string{
		"refresh_token": current.RefreshToken,
	})
	if err != nil {
		return nil, err
	}
	session := s.sessionFromToken(tok)
	s.setCurrent(ctx, session)
	return session, nil
}

// CurrentSession returns the active session, refreshing it when expired.
func (s *Service) CurrentSession(ctx context.Context) (*Session, error) {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil && s.rdb != nil {
		raw, err := s.rdb.Get(ctx, sessionCacheKey)
		if err == nil {
			var cached Session
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				current = &cached
				s.mu.Lock()
				s.current = current
				s.mu.Unlock()
			}
		}
	}
	if current == nil {
		return nil, ErrNoSession
	}
	return current, nil
}

// SignOut drops the current session.
func (s *Service) SignOut(ctx context.Context) {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	if s.rdb != nil {
		_ = s.rdb.Del(ctx, sessionCacheKey)
	}
}

func (s *Service) sessionFromToken(tok *tokenResponse) *Session {
	return &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(tok.ExpiresIn) * time.Second),
		User: models.User{
			ID:          tok.User.ID,
			Email:       tok.User.Email,
			DisplayName: tok.User.UserMetadata.FullName,
			CreatedAt:   time.Now().UTC(),
		},
	}
}

func (s *Service) setCurrent(ctx context.Context, session *Session) {
	s.mu.Lock()
	s.current = session
	s.mu.Unlock()
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(session)
	if err != nil {
		return
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Hour
	}
	_ = s.rdb.Set(ctx, sessionCacheKey, data, ttl)
}

func (s *Service) tokenRequest(ctx context.Context, grantType string, payload map[string]string) (*tokenResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}
	url := fmt.Sprintf("%s/auth/v1/token?grant_type=%s", s.baseURL, grantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.anonKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("token exchange failed (%d): %s", resp.StatusCode, detail)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("token response missing access token")
	}
	return &tok, nil
}
