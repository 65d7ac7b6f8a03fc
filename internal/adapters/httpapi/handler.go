package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
	"github.com/atvirokodosprendimai/caprepair/internal/core/usecase"
)

type ctxKey string

const (
	timeFormat              = "2006-01-02T15:04:05.999999999Z07:00"
	requestIDCtxKey  ctxKey = "request_id"
	maxJSONBodySize         = 1 << 20
	defaultActor            = "operator"
	requestIDHeader         = "X-Request-Id"
)

type Handler struct {
	records  *usecase.RecordService
	changes  *usecase.AuditService
	payloads *usecase.PayloadValidator
	metrics  http.Handler
	logger   *slog.Logger
}

// NewHandler wires the HTTP surface. metrics may be nil, in which case
// /metrics is not mounted.
func NewHandler(records *usecase.RecordService, changes *usecase.AuditService, payloads *usecase.PayloadValidator, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{records: records, changes: changes, payloads: payloads, metrics: metrics, logger: logger}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/v1", func(v chi.Router) {
		v.Get("/records/{kind}", h.listRecords)
		v.Post("/records/{kind}", h.insertRecord)
		v.Put("/records/{kind}", h.updateRecord)
		v.Delete("/records/{kind}", h.deleteRecord)
		v.Get("/records/{kind}/lookup", h.lookupRecord)
		v.Post("/records/{kind}/validate", h.validateRecord)
		v.Post("/capacity/check", h.checkCapacity)
		v.Get("/changes", h.listChanges)
	})

	return r
}

type recordResponse struct {
	Kind   domain.Kind   `json:"kind"`
	Fields domain.Fields `json:"fields"`
}

type changeResponse struct {
	EventID    string              `json:"event_id"`
	Kind       domain.Kind         `json:"kind"`
	Action     domain.ChangeAction `json:"action"`
	Key        domain.Fields       `json:"key"`
	Fields     domain.Fields       `json:"fields,omitempty"`
	Actor      string              `json:"actor"`
	OccurredAt string              `json:"occurred_at"`
}

type capacityRequest struct {
	Flat      domain.Fields `json:"flat"`
	Apartment domain.Fields `json:"apartment"`
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	records, next, err := h.records.List(r.Context(), kind, r.URL.Query().Get("after"), limit)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		result = append(result, toRecordResponse(rec))
	}
	body := map[string]any{"items": result}
	if next != "" {
		body["next"] = next
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) lookupRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}

	rec, err := h.records.Get(r.Context(), kind, identityFromQuery(kind, r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) insertRecord(w http.ResponseWriter, r *http.Request) {
	kind, fields, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	rec, err := h.records.Insert(r.Context(), domain.NewRecord(kind, fields), actorOf(r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	kind, fields, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	rec, err := h.records.Update(r.Context(), domain.NewRecord(kind, fields), actorOf(r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, ok := parseKind(w, r)
	if !ok {
		return
	}
	if confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirm {
		writeError(w, http.StatusBadRequest, "delete requires confirm=true")
		return
	}

	deleted, err := h.records.Delete(r.Context(), kind, identityFromQuery(kind, r), actorOf(r))
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) validateRecord(w http.ResponseWriter, r *http.Request) {
	mode, err := domain.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, fields, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}

	if err := h.records.Validate(r.Context(), domain.NewRecord(kind, fields), mode); err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handler) checkCapacity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var req capacityRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	err := domain.CheckCapacity(
		domain.NewRecord(domain.KindFlat, req.Flat),
		domain.NewRecord(domain.KindApartment, req.Apartment),
	)
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": true})
}

func (h *Handler) listChanges(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	events, err := h.changes.List(r.Context(), domain.ChangeFilter{
		Kind:  domain.Kind(r.URL.Query().Get("kind")),
		Limit: limit,
	})
	if err != nil {
		h.handleDomainError(w, r, err)
		return
	}

	result := make([]changeResponse, 0, len(events))
	for _, e := range events {
		result = append(result, changeResponse{
			EventID:    e.EventID,
			Kind:       e.Kind,
			Action:     e.Action,
			Key:        e.Key,
			Fields:     e.Fields,
			Actor:      e.Actor,
			OccurredAt: e.OccurredAt.UTC().Format(timeFormat),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

// decodeRecord reads the request body as a record of the path's kind.
func (h *Handler) decodeRecord(w http.ResponseWriter, r *http.Request) (domain.Kind, domain.Fields, bool) {
	kind, ok := parseKind(w, r)
	if !ok {
		return "", nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	decoder := json.NewDecoder(r.Body)
	var data json.RawMessage
	if err := decoder.Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return "", nil, false
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return "", nil, false
	}

	fields, err := h.payloads.Decode(kind, data)
	if err != nil {
		h.handleDomainError(w, r, err)
		return "", nil, false
	}
	return kind, fields, true
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestIDCtxKey, requestID)))

		h.logger.Info("http request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(started),
		)
	})
}

func (h *Handler) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := domain.AsValidationError(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": ve.Message,
			"kind":  ve.Kind,
			"field": ve.Field,
			"rule":  ve.Rule,
		})
		return
	}
	var pv *domain.PayloadViolation
	if errors.As(err, &pv) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "payload does not match the " + string(pv.Kind) + " schema",
			"details": pv.Errors,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidKind), errors.Is(err, domain.ErrInvalidMode), errors.Is(err, domain.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Error("storage unavailable", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		h.logger.Error("unhandled error", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseKind(w http.ResponseWriter, r *http.Request) (domain.Kind, bool) {
	kind, err := domain.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return kind, true
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func identityFromQuery(kind domain.Kind, r *http.Request) domain.Fields {
	query := r.URL.Query()
	key := domain.Fields{}
	for _, name := range domain.SchemaFor(kind).Identity {
		key[name] = query.Get(name)
	}
	return key
}

func actorOf(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get("X-Actor")); actor != "" {
		return actor
	}
	return defaultActor
}

func toRecordResponse(rec domain.Record) recordResponse {
	return recordResponse{Kind: rec.Kind, Fields: rec.Fields}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Error("encode json response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		slog.Error("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}
