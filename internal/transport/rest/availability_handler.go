package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"schedula/availability/internal/domain"
	"schedula/availability/internal/service/availability"
	"schedula/availability/internal/store"
)

const maxBodyBytes = 1 << 20

type availabilityService interface {
	List(ctx context.Context, rangeStart, rangeEnd domain.Date) ([]domain.AvailabilityRecord, error)
	UpsertBatch(ctx context.Context, in availability.BatchInput) (int, error)
	Upsert(ctx context.Context, rec domain.AvailabilityRecord) (domain.AvailabilityRecord, error)
}

type AvailabilityHandler struct {
	svc availabilityService
	log *slog.Logger
}

func NewAvailabilityHandler(svc availabilityService, log *slog.Logger) *AvailabilityHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AvailabilityHandler{svc: svc, log: log}
}

func (h *AvailabilityHandler) List(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("route", "ListAvailability"))

	q := r.URL.Query()
	rangeStart, err := domain.ParseDate(q.Get("rangeStart"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "rangeStart must be YYYY-MM-DD")
		return
	}
	rangeEnd, err := domain.ParseDate(q.Get("rangeEnd"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "rangeEnd must be YYYY-MM-DD")
		return
	}

	rows, err := h.svc.List(r.Context(), rangeStart, rangeEnd)
	if err != nil {
		h.writeServiceError(w, log, err)
		return
	}

	out := make([]recordResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecordResponse(row))
	}
	log.Debug(
		"availability listed",
		slog.String("range_start", rangeStart.String()),
		slog.String("range_end", rangeEnd.String()),
		slog.Int("count", len(out)),
	)
	writeJSON(w, http.StatusOK, out)
}

func (h *AvailabilityHandler) UpsertBatch(w http.ResponseWriter, r *http.Request) {
	log := withOperator(h.log.With(slog.String("route", "UpsertBatch")), r)

	var req batchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	records := make([]domain.AvailabilityRecord, 0, len(req.Records))
	for i, dto := range req.Records {
		rec, err := dto.toDomain()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("record %d: %v", i, err))
			return
		}
		records = append(records, rec)
	}

	n, err := h.svc.UpsertBatch(r.Context(), availability.BatchInput{
		Records:        records,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		h.writeServiceError(w, log, err)
		return
	}
	log.Info("availability batch applied", slog.Int("applied", n))
	writeJSON(w, http.StatusOK, batchResponse{Applied: n})
}

func (h *AvailabilityHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	log := withOperator(h.log.With(slog.String("route", "UpsertAvailability")), r)

	var req recordDTO
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.svc.Upsert(r.Context(), rec)
	if err != nil {
		h.writeServiceError(w, log, err)
		return
	}
	log.Info("availability upserted", slog.String("slot", saved.Key().String()), slog.Bool("is_open", saved.IsOpen))
	writeJSON(w, http.StatusOK, toRecordResponse(saved))
}

// withOperator tags writes with the subject of the verified admin token.
func withOperator(log *slog.Logger, r *http.Request) *slog.Logger {
	if claims, ok := ClaimsFromContext(r.Context()); ok {
		return log.With(slog.String("operator", claims.Subject))
	}
	return log
}

func (h *AvailabilityHandler) writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var vErr *availability.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency conflict")
		writeError(w, http.StatusConflict, "This request key was already used for a different batch.")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", slog.Any("err", err))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
	default:
		log.Error("request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func idempotencyKey(r *http.Request) string {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = r.Header.Get("X-Idempotency-Key")
	}
	return strings.TrimSpace(key)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
