package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/primanota/primanota/internal/audit"
	"github.com/primanota/primanota/internal/platform/httpx"
)

type auditReader interface {
	Records(ctx context.Context, entryID int64) ([]audit.Record, error)
	VerifyChain(ctx context.Context, entryID int64) (bool, error)
}

// Handler exposes the journal over HTTP.
type Handler struct {
	logger   *slog.Logger
	svc      *Service
	audit    auditReader
	validate *validator.Validate
}

// NewHandler constructs a ledger HTTP handler.
func NewHandler(logger *slog.Logger, svc *Service, auditSvc auditReader) *Handler {
	return &Handler{
		logger:   logger,
		svc:      svc,
		audit:    auditSvc,
		validate: validator.New(),
	}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/entries", func(r chi.Router) {
		r.Post("/", h.postEntry)
		r.Get("/", h.listEntries)
		r.Get("/{id}", h.getEntry)
		r.Post("/{id}/reverse", h.reverseEntry)
		r.Get("/{id}/audit", h.getAudit)
	})
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	var req PostEntryRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	entry, err := req.ToEntry()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	res := h.svc.Post(r.Context(), entry, req.UserID, PostOptions{
		ProtocolSeries: req.ProtocolSeries,
		IdempotenceKey: req.IdempotenceKey,
	})
	if !res.Success {
		h.logger.Warn("posting rejected",
			slog.String("date", req.Date),
			slog.Any("errors", res.Errors))
	}
	httpx.JSON(w, StatusForResult(res, http.StatusCreated), res)
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid entry id", err.Error())
		return
	}
	var req ReverseEntryRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	res := h.svc.ReverseEntry(r.Context(), id, req.UserID, req.Description, PostOptions{
		ProtocolSeries: req.ProtocolSeries,
		IdempotenceKey: req.IdempotenceKey,
	})
	httpx.JSON(w, StatusForResult(res, http.StatusCreated), res)
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid entry id", err.Error())
		return
	}
	e, err := h.svc.Query().GetEntry(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "entry not found", "")
		return
	}
	if err != nil {
		h.logger.Error("get entry", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "storage failure", "")
		return
	}
	httpx.JSON(w, http.StatusOK, NewEntryResponse(e))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{
		FromDate: r.URL.Query().Get("from"),
		ToDate:   r.URL.Query().Get("to"),
		Party:    r.URL.Query().Get("party"),
		Series:   r.URL.Query().Get("series"),
		Limit:    100,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			httpx.Problem(w, http.StatusBadRequest, "invalid limit", raw)
			return
		}
		f.Limit = n
	}

	entries, err := h.svc.Query().List(r.Context(), f)
	if err != nil {
		h.logger.Error("list entries", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "storage failure", "")
		return
	}
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": out})
}

func (h *Handler) getAudit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid entry id", err.Error())
		return
	}
	records, err := h.audit.Records(r.Context(), id)
	if err != nil {
		h.logger.Error("audit records", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "storage failure", "")
		return
	}
	valid, err := h.audit.VerifyChain(r.Context(), id)
	if err != nil {
		h.logger.Error("audit verify", slog.Int64("id", id), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "storage failure", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entry_id":    id,
		"chain_valid": valid,
		"records":     records,
	})
}

// StatusForResult maps a posting result to an HTTP status. The first
// structured error decides; validation failures are 422 because the request
// was well-formed but the entry broke an accounting rule.
func StatusForResult(res Result, okStatus int) int {
	if res.Success {
		return okStatus
	}
	if len(res.ErrorDetails) == 0 {
		return http.StatusInternalServerError
	}
	switch res.ErrorDetails[0].Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindIdempotenceConflict:
		return http.StatusConflict
	case KindDBError, KindProtocolError:
		return http.StatusInternalServerError
	case KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusUnprocessableEntity
	}
}
