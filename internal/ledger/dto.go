package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LineRequest is one journal line on the wire. Amounts travel as decimal
// strings so clients never lose precision to float encoding.
type LineRequest struct {
	AccountCode string `json:"account_code" validate:"required"`
	Dare        string `json:"dare" validate:"omitempty"`
	Avere       string `json:"avere" validate:"omitempty"`
}

// PostEntryRequest is the payload for POST /entries.
type PostEntryRequest struct {
	Date        string        `json:"date" validate:"required,datetime=2006-01-02"`
	Description string        `json:"description" validate:"required"`
	Lines       []LineRequest `json:"lines" validate:"required,min=1,dive"`

	Document     string `json:"document"`
	DocumentDate string `json:"document_date" validate:"omitempty,datetime=2006-01-02"`
	Party        string `json:"party"`

	ClientReferenceID string `json:"client_reference_id"`
	ProtocolSeries    string `json:"protocol_series"`

	TaxableAmount string `json:"taxable_amount" validate:"omitempty"`
	VATRate       string `json:"vat_rate" validate:"omitempty"`
	VATAmount     string `json:"vat_amount" validate:"omitempty"`

	UserID         string `json:"user_id" validate:"required"`
	IdempotenceKey string `json:"idempotence_key"`
}

// ReverseEntryRequest is the payload for POST /entries/{id}/reverse.
type ReverseEntryRequest struct {
	UserID         string `json:"user_id" validate:"required"`
	Description    string `json:"description"`
	ProtocolSeries string `json:"protocol_series"`
	IdempotenceKey string `json:"idempotence_key"`
}

// ToEntry converts the request into a domain entry.
func (req PostEntryRequest) ToEntry() (Entry, error) {
	lines := make([]Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		dare, err := parseOptionalAmount(l.Dare)
		if err != nil {
			return Entry{}, fmt.Errorf("line %s: dare: %w", l.AccountCode, err)
		}
		avere, err := parseOptionalAmount(l.Avere)
		if err != nil {
			return Entry{}, fmt.Errorf("line %s: avere: %w", l.AccountCode, err)
		}
		lines = append(lines, Line{AccountCode: l.AccountCode, Dare: dare, Avere: avere})
	}

	e := Entry{
		Date:              req.Date,
		Description:       req.Description,
		Lines:             lines,
		Document:          req.Document,
		DocumentDate:      req.DocumentDate,
		Party:             req.Party,
		ClientReferenceID: req.ClientReferenceID,
		ProtocolSeries:    req.ProtocolSeries,
	}

	var err error
	if e.TaxableAmount, err = parseOptionalAmountPtr(req.TaxableAmount); err != nil {
		return Entry{}, fmt.Errorf("taxable_amount: %w", err)
	}
	if e.VATRate, err = parseOptionalAmountPtr(req.VATRate); err != nil {
		return Entry{}, fmt.Errorf("vat_rate: %w", err)
	}
	if e.VATAmount, err = parseOptionalAmountPtr(req.VATAmount); err != nil {
		return Entry{}, fmt.Errorf("vat_amount: %w", err)
	}
	return e, nil
}

func parseOptionalAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseOptionalAmountPtr(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// LineResponse mirrors LineRequest on the way out.
type LineResponse struct {
	AccountCode string `json:"account_code"`
	Dare        string `json:"dare"`
	Avere       string `json:"avere"`
}

// EntryResponse is a stored entry on the wire.
type EntryResponse struct {
	ID             int64  `json:"id"`
	Date           string `json:"date"`
	Protocol       string `json:"protocol"`
	ProtocolSeries string `json:"protocol_series"`
	Description    string `json:"description"`
	Document       string `json:"document,omitempty"`
	DocumentDate   string `json:"document_date,omitempty"`
	Party          string `json:"party,omitempty"`
	CreatedBy      string `json:"created_by"`
	ReversalOf     int64  `json:"reversal_of,omitempty"`

	TaxableAmount string `json:"taxable_amount,omitempty"`
	VATRate       string `json:"vat_rate,omitempty"`
	VATAmount     string `json:"vat_amount,omitempty"`

	CreatedAt string         `json:"created_at"`
	Lines     []LineResponse `json:"lines,omitempty"`
}

// NewEntryResponse maps a stored entry onto the wire shape.
func NewEntryResponse(e StoredEntry) EntryResponse {
	resp := EntryResponse{
		ID:             e.ID,
		Date:           e.Date,
		Protocol:       e.Protocol,
		ProtocolSeries: e.ProtocolSeries,
		Description:    e.Description,
		Document:       e.Document,
		DocumentDate:   e.DocumentDate,
		Party:          e.Party,
		CreatedBy:      e.CreatedBy,
		ReversalOf:     e.ReversalOf,
		CreatedAt:      e.CreatedAt,
	}
	if e.TaxableAmount != nil {
		resp.TaxableAmount = Q2(*e.TaxableAmount).StringFixed(2)
	}
	if e.VATRate != nil {
		resp.VATRate = Q2(*e.VATRate).StringFixed(2)
	}
	if e.VATAmount != nil {
		resp.VATAmount = Q2(*e.VATAmount).StringFixed(2)
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			AccountCode: l.AccountCode,
			Dare:        Q2(l.Dare).StringFixed(2),
			Avere:       Q2(l.Avere).StringFixed(2),
		})
	}
	return resp
}
