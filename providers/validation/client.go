package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"validation-viewer/core/models"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds every decoded response
const maxBodyBytes = 64 << 20

var validate = validator.New()

// Client talks to the validation comparison backend
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new backend client
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: backend url: %w", models.ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: backend url %q must be http or https", models.ErrInvalidConfig, baseURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

func (c *Client) endpoint(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL.String() + "/" + strings.Join(escaped, "/")
}

// FetchRevisions returns every revision known to the backend
func (c *Client) FetchRevisions(ctx context.Context) ([]models.Revision, error) {
	const op = "fetch revisions"
	body, status, err := c.do(ctx, op, http.MethodGet, c.endpoint("revisions"), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpectedStatus(op, status, body)
	}

	var list models.RevisionList
	if err := decode(body, "revisions", &list); err != nil {
		return nil, err
	}
	return list.Revisions, nil
}

// FetchComparison returns the comparison artifact for key.
// A 404 yields models.ErrArtifactNotFound.
func (c *Client) FetchComparison(ctx context.Context, key string) (*models.ComparisonArtifact, error) {
	const op = "fetch comparison"
	body, status, err := c.do(ctx, op, http.MethodGet, c.endpoint("comparisons", key), nil)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, key)
	default:
		return nil, unexpectedStatus(op, status, body)
	}

	var artifact models.ComparisonArtifact
	if err := decode(body, "comparison", &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// RequestComparison asks the backend to generate a comparison and returns its progress token
func (c *Client) RequestComparison(ctx context.Context, revisions []string) (string, error) {
	const op = "request comparison"
	payload, err := json.Marshal(models.GenerationRequest{RevisionList: revisions})
	if err != nil {
		return "", err
	}
	body, status, err := c.do(ctx, op, http.MethodPost, c.endpoint("create_comparison"), payload)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK && status != http.StatusAccepted && status != http.StatusCreated {
		return "", unexpectedStatus(op, status, body)
	}

	var resp models.GenerationResponse
	if err := decode(body, "generation response", &resp); err != nil {
		return "", err
	}
	c.logger.Debug("comparison generation accepted", "revisions", revisions)
	return resp.ProgressKey, nil
}

// PollProgress reports generation progress for token.
// A nil status means the backend has no bookkeeping for token yet.
func (c *Client) PollProgress(ctx context.Context, token string) (*models.ProgressStatus, error) {
	const op = "poll progress"
	payload, err := json.Marshal(models.ProgressRequest{Input: token})
	if err != nil {
		return nil, err
	}
	body, status, err := c.do(ctx, op, http.MethodPost, c.endpoint("check_comparison_status"), payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, unexpectedStatus(op, status, body)
	}
	return parseProgress(body)
}

// parseProgress decodes a poll body. Empty and falsy bodies carry no status.
func parseProgress(body []byte) (*models.ProgressStatus, error) {
	trimmed := bytes.TrimSpace(body)
	switch string(trimmed) {
	case "", "null", "false", "{}", `""`, "0":
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &models.DataShapeError{Source: "progress", Err: err}
	}
	if len(fields) == 0 {
		return nil, nil
	}

	var status models.ProgressStatus
	if err := decode(trimmed, "progress", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, op, method, target string, payload []byte) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, 0, &models.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &models.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, &models.TransportError{Op: op, Err: err}
	}
	return body, resp.StatusCode, nil
}

func decode(body []byte, source string, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &models.DataShapeError{Source: source, Err: err}
	}
	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return err
		}
		return &models.DataShapeError{Source: source, Err: err}
	}
	return nil
}

func unexpectedStatus(op string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return &models.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d: %s", status, snippet)}
}
