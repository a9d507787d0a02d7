package closures

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/primanota/primanota/internal/ledger"
	"github.com/primanota/primanota/internal/platform/httpx"
)

// Handler exposes the close workflow and the trial balance report.
type Handler struct {
	logger   *slog.Logger
	svc      *Service
	validate *validator.Validate
}

// NewHandler constructs a closures HTTP handler.
func NewHandler(logger *slog.Logger, svc *Service) *Handler {
	return &Handler{logger: logger, svc: svc, validate: validator.New()}
}

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/closures", func(r chi.Router) {
		r.Post("/close", h.closePeriod)
		r.Post("/finalize", h.finalizeYear)
		r.Post("/open", h.openPeriod)
	})
	r.Get("/reports/trial-balance", h.trialBalance)
}

type adjustmentItemRequest struct {
	Description   string `json:"description" validate:"required"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	DebitAccount  string `json:"debit_account" validate:"required"`
	CreditAccount string `json:"credit_account" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
}

type closePeriodRequest struct {
	Year        string `json:"year" validate:"required,len=4,numeric"`
	Month       string `json:"month" validate:"omitempty,len=2,numeric"`
	UserID      string `json:"user_id" validate:"required"`
	Description string `json:"description"`

	Accruals      []adjustmentItemRequest `json:"accruals" validate:"omitempty,dive"`
	Deferrals     []adjustmentItemRequest `json:"deferrals" validate:"omitempty,dive"`
	Amortizations []adjustmentItemRequest `json:"amortizations" validate:"omitempty,dive"`
}

type yearRequest struct {
	Year        string `json:"year" validate:"required,len=4,numeric"`
	UserID      string `json:"user_id" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) closePeriod(w http.ResponseWriter, r *http.Request) {
	var req closePeriodRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	adj, err := toAdjustments(req)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid amount", err.Error())
		return
	}

	res := h.svc.ClosePeriod(r.Context(), req.Year, req.Month, req.UserID, req.Description, adj)
	if !res.Success {
		h.logger.Warn("close period rejected",
			slog.String("year", req.Year),
			slog.String("month", req.Month),
			slog.Any("errors", res.Errors))
	}
	httpx.JSON(w, ledger.StatusForResult(res, http.StatusOK), res)
}

func (h *Handler) finalizeYear(w http.ResponseWriter, r *http.Request) {
	var req yearRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	res := h.svc.FinalizeYear(r.Context(), req.Year, req.UserID, req.Description)
	httpx.JSON(w, ledger.StatusForResult(res, http.StatusOK), res)
}

func (h *Handler) openPeriod(w http.ResponseWriter, r *http.Request) {
	var req yearRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	res := h.svc.OpenNewPeriod(r.Context(), req.Year, req.UserID, req.Description)
	httpx.JSON(w, ledger.StatusForResult(res, http.StatusOK), res)
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		httpx.Problem(w, http.StatusBadRequest, "invalid request", "from and to query parameters are required")
		return
	}
	balances, err := h.svc.TrialBalance(r.Context(), from, to)
	if err != nil {
		h.logger.Error("trial balance", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "storage failure", "")
		return
	}
	out := make([]map[string]any, 0, len(balances))
	for _, b := range balances {
		out = append(out, map[string]any{
			"account_code":   b.AccountCode,
			"account_name":   b.AccountName,
			"statement_type": b.StatementType,
			"side":           b.Side,
			"amount":         b.Amount.StringFixed(2),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"from": from, "to": to, "balances": out})
}

func toAdjustments(req closePeriodRequest) (Adjustments, error) {
	var adj Adjustments
	for _, it := range req.Accruals {
		amt, err := decimal.NewFromString(it.Amount)
		if err != nil {
			return Adjustments{}, err
		}
		adj.Accruals = append(adj.Accruals, AccrualItem{
			Description:    it.Description,
			Date:           it.Date,
			ExpenseAccount: it.DebitAccount,
			PayableAccount: it.CreditAccount,
			Amount:         amt,
		})
	}
	for _, it := range req.Deferrals {
		amt, err := decimal.NewFromString(it.Amount)
		if err != nil {
			return Adjustments{}, err
		}
		adj.Deferrals = append(adj.Deferrals, DeferralItem{
			Description:    it.Description,
			Date:           it.Date,
			PrepaidAccount: it.DebitAccount,
			ExpenseAccount: it.CreditAccount,
			Amount:         amt,
		})
	}
	for _, it := range req.Amortizations {
		amt, err := decimal.NewFromString(it.Amount)
		if err != nil {
			return Adjustments{}, err
		}
		adj.Amortizations = append(adj.Amortizations, AmortizationItem{
			Description:    it.Description,
			Date:           it.Date,
			ExpenseAccount: it.DebitAccount,
			AssetAccount:   it.CreditAccount,
			Amount:         amt,
		})
	}
	return adj, nil
}
