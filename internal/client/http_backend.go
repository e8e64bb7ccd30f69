package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"schedula/availability/internal/domain"
)

const maxErrorBody = 4 << 10

// StatusError is a non-2xx answer from the availability API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("availability api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("availability api: status %d: %s", e.StatusCode, e.Message)
}

// HTTPBackend talks to the /api/admin availability endpoints.
type HTTPBackend struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPBackend(baseURL, token string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) FetchRange(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	q := url.Values{}
	q.Set("rangeStart", rangeStart.String())
	q.Set("rangeEnd", rangeEnd.String())

	var rows []domain.AvailabilityRecord
	if err := b.do(ctx, http.MethodGet, "/api/admin/availability?"+q.Encode(), nil, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (b *HTTPBackend) CommitBatch(ctx context.Context, batchID uuid.UUID, changes []domain.PendingChange) error {
	headers := map[string]string{}
	if batchID != uuid.Nil {
		headers["Idempotency-Key"] = batchID.String()
	}
	body := struct {
		Records []domain.PendingChange `json:"records"`
	}{Records: changes}

	var out struct {
		Applied int `json:"applied"`
	}
	return b.do(ctx, http.MethodPut, "/api/admin/availability/batch", headers, body, &out)
}

func (b *HTTPBackend) CommitOne(ctx context.Context, change domain.PendingChange) error {
	return b.do(ctx, http.MethodPost, "/api/admin/availability", nil, change, nil)
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
