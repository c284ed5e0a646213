// Package remote is the HTTP client for the sync backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/kimhsiao/lifetrack/backend/internal/errors"
	"github.com/kimhsiao/lifetrack/backend/internal/logging"
	syncpkg "github.com/kimhsiao/lifetrack/backend/internal/sync"
)

// MutationsPath is appended to the backend URL for pushes.
const MutationsPath = "/sync/mutations"

// maxErrorBody caps how much of a rejection body is kept in the error.
const maxErrorBody = 512

// Client pushes mutations to the backend as JSON over HTTP.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend at baseURL. An empty token
// sends no Authorization header.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.OrGlobal(c.logger, "sync.remote")
	return c
}

// conflictBody is the 409 response.
type conflictBody struct {
	RemoteUpdatedAt time.Time `json:"remoteUpdatedAt"`
}

// Push implements sync.Backend. 2xx acknowledges the mutation, 409 is a
// *sync.ConflictError, any other status is SYNC_REJECTED and a failed
// round trip is SYNC_TRANSPORT.
func (c *Client) Push(ctx context.Context, m syncpkg.Mutation) error {
	body, err := json.Marshal(m)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "encode mutation", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+MutationsPath, bytes.NewReader(body))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "build push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncTransport, "push request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil

	case resp.StatusCode == http.StatusConflict:
		var cb conflictBody
		if err := json.NewDecoder(resp.Body).Decode(&cb); err != nil || cb.RemoteUpdatedAt.IsZero() {
			return apperrors.Newf(apperrors.ErrSyncRejected, "conflict response for %s/%s without remoteUpdatedAt", m.Table, m.EntityID)
		}
		c.logger.Debug("backend reported conflict",
			zap.String("table", m.Table),
			zap.String("entity_id", m.EntityID),
			zap.Time("remote_updated_at", cb.RemoteUpdatedAt))
		return &syncpkg.ConflictError{RemoteUpdatedAt: cb.RemoteUpdatedAt}

	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return apperrors.New(apperrors.ErrSyncRejected,
			fmt.Sprintf("push %s/%s failed with status %d: %s", m.Table, m.EntityID, resp.StatusCode, strings.TrimSpace(string(msg))))
	}
}

var _ syncpkg.Backend = (*Client)(nil)
