package rest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedula/availability/internal/auth"
	"schedula/availability/internal/domain"
	"schedula/availability/internal/logging"
	"schedula/availability/internal/observability/metrics"
	"schedula/availability/internal/service/availability"
	"schedula/availability/internal/store"
)

const testSecret = "test-secret"

type fakeService struct {
	listFn        func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error)
	upsertBatchFn func(ctx context.Context, in availability.BatchInput) (int, error)
	upsertFn      func(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error)
}

func (f *fakeService) List(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
	if f.listFn == nil {
		panic("List not configured")
	}
	return f.listFn(ctx, rangeStart, rangeEnd)
}

func (f *fakeService) UpsertBatch(ctx context.Context, in availability.BatchInput) (int, error) {
	if f.upsertBatchFn == nil {
		panic("UpsertBatch not configured")
	}
	return f.upsertBatchFn(ctx, in)
}

func (f *fakeService) Upsert(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error) {
	if f.upsertFn == nil {
		panic("Upsert not configured")
	}
	return f.upsertFn(ctx, rec)
}

func newTestRouter(svc *fakeService, m *metrics.AvailabilityMetrics) http.Handler {
	return NewRouter(Config{
		Service:  svc,
		Verifier: auth.NewVerifier(testSecret),
		Metrics:  m,
		Logger:   logging.Discard(),
	})
}

func adminToken(t *testing.T, role string) string {
	t.Helper()
	token, err := auth.Sign(testSecret, "ops", role, time.Hour)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+adminToken(t, auth.RoleAdmin))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestRouter_RequiresAdminToken(t *testing.T) {
	h := newTestRouter(&fakeService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/availability", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/availability", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, "USER"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, auth.ErrForbidden.Error(), errorBody(t, rec))
}

func TestRouter_HealthzIsPublic(t *testing.T) {
	h := newTestRouter(&fakeService{}, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListAvailability(t *testing.T) {
	var gotStart, gotEnd domain.Date
	svc := &fakeService{
		listFn: func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
			gotStart, gotEnd = rangeStart, rangeEnd
			return []domain.AvailabilityRecord{
				{Date: domain.NewDate(2024, 5, 1), SlotStart: domain.NewSlotStart(9, 0), IsOpen: true},
			}, nil
		},
	}
	reg := prometheus.NewRegistry()
	h := newTestRouter(svc, metrics.NewAvailabilityMetrics(reg))

	rec := do(t, h, http.MethodGet, "/api/admin/availability?rangeStart=2024-05-01&rangeEnd=2024-05-31", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"date":"2024-05-01","slotStart":"09:00","isOpen":true}]`, rec.Body.String())
	assert.Equal(t, domain.NewDate(2024, 5, 1), gotStart)
	assert.Equal(t, domain.NewDate(2024, 5, 31), gotEnd)
	n, err := testutil.GatherAndCount(reg, "schedula_api_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListAvailability_BadRange(t *testing.T) {
	svc := &fakeService{
		listFn: func(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error) {
			return nil, &availability.ValidationError{}
		},
	}
	h := newTestRouter(svc, nil)

	rec := do(t, h, http.MethodGet, "/api/admin/availability?rangeStart=May&rangeEnd=2024-05-31", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "rangeStart must be YYYY-MM-DD", errorBody(t, rec))

	rec = do(t, h, http.MethodGet, "/api/admin/availability?rangeStart=2024-05-31&rangeEnd=2024-05-01", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertBatch(t *testing.T) {
	var got availability.BatchInput
	svc := &fakeService{
		upsertBatchFn: func(ctx context.Context, in availability.BatchInput) (int, error) {
			got = in
			return len(in.Records), nil
		},
	}
	h := newTestRouter(svc, nil)

	body := `{"records":[{"date":"2024-05-01","slotStart":"09:00","isOpen":true},{"date":"2024-05-01","slotStart":"10:00","isOpen":false}]}`
	rec := do(t, h, http.MethodPut, "/api/admin/availability/batch", body, map[string]string{"Idempotency-Key": " k1 "})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"applied":2}`, rec.Body.String())
	assert.Equal(t, "k1", got.IdempotencyKey)
	require.Len(t, got.Records, 2)
	assert.False(t, got.Records[1].IsOpen)
	assert.Equal(t, domain.NewSlotStart(10, 0), got.Records[1].SlotStart)
}

func TestUpsertBatch_ValidatesBody(t *testing.T) {
	h := newTestRouter(&fakeService{}, nil)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing records", `{}`},
		{"missing isOpen", `{"records":[{"date":"2024-05-01","slotStart":"09:00"}]}`},
		{"bad date", `{"records":[{"date":"01/05/2024","slotStart":"09:00","isOpen":true}]}`},
		{"bad slot", `{"records":[{"date":"2024-05-01","slotStart":"9am","isOpen":true}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/api/admin/availability/batch", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, errorBody(t, rec))
		})
	}
}

func TestUpsertBatch_MapsServiceErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"conflict", store.ErrIdempotencyConflict, http.StatusConflict},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"internal", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{
				upsertBatchFn: func(ctx context.Context, in availability.BatchInput) (int, error) {
					return 0, tc.err
				},
			}
			rec := do(t, newTestRouter(svc, nil), http.MethodPut, "/api/admin/availability/batch", `{"records":[]}`, nil)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestUpsertAvailability(t *testing.T) {
	svc := &fakeService{
		upsertFn: func(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error) {
			return rec, nil
		},
	}
	h := newTestRouter(svc, nil)

	rec := do(t, h, http.MethodPost, "/api/admin/availability", `{"date":"2024-05-02","slotStart":"13:00","isOpen":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"date":"2024-05-02","slotStart":"13:00","isOpen":true}`, rec.Body.String())
}

func TestUpsertAvailability_LogsOperator(t *testing.T) {
	var logs bytes.Buffer
	h := NewRouter(Config{
		Service: &fakeService{
			upsertFn: func(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error) {
				claims, ok := ClaimsFromContext(ctx)
				require.True(t, ok)
				assert.Equal(t, "ops", claims.Subject)
				assert.True(t, claims.IsAdmin())
				return rec, nil
			},
		},
		Verifier: auth.NewVerifier(testSecret),
		Logger:   logging.NewWithWriter(&logs, "schedula-server", "info"),
	})

	rec := do(t, h, http.MethodPost, "/api/admin/availability", `{"date":"2024-05-02","slotStart":"13:00","isOpen":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), `"operator":"ops"`)
}

func TestClaimsFromContext_Missing(t *testing.T) {
	_, ok := ClaimsFromContext(context.Background())
	assert.False(t, ok)
}

func TestRouter_RateLimited(t *testing.T) {
	h := NewRouter(Config{
		Service:            &fakeService{},
		Verifier:           auth.NewVerifier(testSecret),
		RateLimitPerMinute: 1,
		Logger:             logging.Discard(),
	})

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
