// Package account verifies sync-socket credentials against the external
// account service.
package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/WatchParty/internal/core"
	"github.com/dkeye/WatchParty/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHeader  = "Authorization"
	DefaultTimeout = 5 * time.Second

	maxBody = 1 << 20
)

type Config struct {
	// URL of the "current user" endpoint.
	URL string
	// Header carries the token. Authorization gets a Bearer prefix.
	Header  string
	Timeout time.Duration
}

// Verifier performs one GET per call. No retries, no caching.
type Verifier struct {
	cfg    Config
	client *http.Client
}

var _ core.IdentityVerifier = (*Verifier)(nil)

func NewVerifier(cfg Config, client *http.Client) *Verifier {
	if cfg.Header == "" {
		cfg.Header = DefaultHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Verifier{cfg: cfg, client: client}
}

// accountUser accepts the field spellings the account service has used.
type accountUser struct {
	ID       json.RawMessage `json:"id"`
	Username string          `json:"username"`
	Title    string          `json:"title"`
	Avatar   string          `json:"avatar"`
	Thumb    string          `json:"thumb"`
}

func (v *Verifier) Verify(ctx context.Context, token string) (*domain.User, bool) {
	if token == "" {
		return nil, false
	}
	user, err := v.fetch(ctx, token)
	if err != nil {
		log.Warn().Err(err).Str("module", "account").Msg("verification failed")
		return nil, false
	}
	return user, true
}

func (v *Verifier) fetch(ctx context.Context, token string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if strings.EqualFold(v.cfg.Header, DefaultHeader) {
		req.Header.Set(DefaultHeader, "Bearer "+token)
	} else {
		req.Header.Set(v.cfg.Header, token)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("account service status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var au accountUser
	if err := json.Unmarshal(body, &au); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return au.toDomain()
}

func (au accountUser) toDomain() (*domain.User, error) {
	id, err := normalizeID(au.ID)
	if err != nil {
		return nil, err
	}
	name := au.Username
	if name == "" {
		name = au.Title
	}
	avatar := au.Avatar
	if avatar == "" {
		avatar = au.Thumb
	}
	return domain.NewUser(id, name, avatar)
}

// normalizeID accepts string or numeric ids.
func normalizeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", domain.ErrUserIDEmpty
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("decode id: %w", err)
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decode id: %w", err)
	}
	return n.String(), nil
}
