// Package handler exposes the validation bus over HTTP. Handlers translate
// between the JSON transport shapes and the service layer; every request is
// expected to carry a resolved caller identity in its context.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"validbus/internal/validation"
	"validbus/pkg/domain"
	dErrors "validbus/pkg/domain-errors"
	"validbus/pkg/platform/httputil"
	"validbus/pkg/requestcontext"
)

// ValidationService is the service surface the handlers consume.
type ValidationService interface {
	Validate(ctx context.Context, identity domain.CallerIdentity, t domain.ValidationType, raw string, clientIdentifier string) (*validation.Result, error)
	SoftDeleteRecord(ctx context.Context, identity domain.CallerIdentity, id domain.RecordID) error
	RestoreRecord(ctx context.Context, identity domain.CallerIdentity, id domain.RecordID) error
	SetGoldenRecord(ctx context.Context, identity domain.CallerIdentity, id domain.RecordID, golden bool) error
	History(ctx context.Context, identity domain.CallerIdentity, limit int, includeDeleted bool) ([]*validation.Record, error)
	GoldenRecord(ctx context.Context, normalized string, t domain.ValidationType) (*validation.Record, error)
	SupportedTypes() []string
}

// Handler wires validation endpoints into a chi router.
type Handler struct {
	service ValidationService
	logger  *slog.Logger
}

func New(service ValidationService, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the validation routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/validate", h.validate)
	r.Get("/v1/validations", h.history)
	r.Get("/v1/validation-types", h.types)
	r.Get("/v1/golden-records", h.goldenRecord)
	r.Delete("/v1/records/{id}", h.softDelete)
	r.Post("/v1/records/{id}/restore", h.restore)
	r.Put("/v1/records/{id}/golden", h.setGolden)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httputil.DecodeJSON[validateRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Validate(ctx, requestcontext.Identity(ctx),
		domain.ValidationType(req.ValidationType), req.Data, req.ClientIdentifier)
	if err != nil {
		h.logError(ctx, "validate request failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newValidateResponse(result))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"

	records, err := h.service.History(ctx, requestcontext.Identity(ctx), limit, includeDeleted)
	if err != nil {
		h.logError(ctx, "history request failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newHistoryResponse(records))
}

func (h *Handler) types(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, typesResponse{ValidationTypes: h.service.SupportedTypes()})
}

func (h *Handler) goldenRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	t := r.URL.Query().Get("type")
	value := r.URL.Query().Get("value")
	if t == "" || value == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "type and value query parameters are required"))
		return
	}

	rec, err := h.service.GoldenRecord(ctx, value, domain.ValidationType(t))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newRecordResponse(rec))
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.SoftDeleteRecord)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.service.RestoreRecord)
}

func (h *Handler) setGolden(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[goldenRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.SetGoldenRecord(ctx, requestcontext.Identity(ctx), id, req.IsGoldenRecord); err != nil {
		h.logError(ctx, "golden record update failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, op func(context.Context, domain.CallerIdentity, domain.RecordID) error) {
	ctx := r.Context()

	id, err := domain.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := op(ctx, requestcontext.Identity(ctx), id); err != nil {
		h.logError(ctx, "record lifecycle request failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	if h.logger == nil {
		return
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
		return
	}
	h.logger.DebugContext(ctx, msg, "request_id", requestcontext.RequestID(ctx), "error", err)
}
