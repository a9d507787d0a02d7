package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountMap binds the builders to concrete chart codes. The zero value is
// unusable; use DefaultAccountMap and override what differs.
type AccountMap struct {
	CreditiClienti     string
	IVAACredito        string
	BancaCC            string
	Cassa              string
	DebitiFornitori    string
	IVAADebito         string
	VenditePrestazioni string
	CostiServizi       string
	OneriFinanziari    string
}

// DefaultAccountMap matches the seeded Italian baseline chart.
func DefaultAccountMap() AccountMap {
	return AccountMap{
		CreditiClienti:     "1410",
		IVAACredito:        "1411",
		BancaCC:            "1432",
		Cassa:              "1431",
		DebitiFornitori:    "2310",
		IVAADebito:         "2321",
		VenditePrestazioni: "4100",
		CostiServizi:       "3200",
		OneriFinanziari:    "3500",
	}
}

// DefaultIdempotenceKey derives the deterministic key used when the caller
// does not supply one. Collisions are harmless: the engine compares payload
// hashes before treating a key hit as a replay.
func DefaultIdempotenceKey(prefix, date, docNo, description string) string {
	return fmt.Sprintf("%s:%s:%s:%s", prefix, date, docNo, description)
}

// Service is the high-level prima nota API: builders for the common
// operations, posting delegation, and safe reversals.
type Service struct {
	engine *Engine
	query  *Query
	acc    AccountMap
}

// NewService wires the ledger service.
func NewService(engine *Engine, query *Query, acc AccountMap) *Service {
	return &Service{engine: engine, query: query, acc: acc}
}

// Post delegates to the posting engine.
func (s *Service) Post(ctx context.Context, e Entry, userID string, opts PostOptions) Result {
	return s.engine.Post(ctx, e, userID, opts)
}

// Query exposes the read side.
func (s *Service) Query() *Query {
	return s.query
}

// InvoiceInput is the shared shape of sales and purchase invoices.
type InvoiceInput struct {
	Date        string
	Party       string
	DocNo       string
	DocDate     string
	Description string
	NetAmount   decimal.Decimal
	VATRate     decimal.Decimal

	// ExpenseAccount overrides the default expense code on purchases.
	ExpenseAccount string
}

// BuildSalesInvoice builds a customer invoice:
// dare crediti clienti (gross), avere vendite (net), avere IVA a debito.
func (s *Service) BuildSalesInvoice(in InvoiceInput) Entry {
	net := Q2(in.NetAmount)
	rate := Q2(in.VATRate)
	vat := Q2(net.Mul(rate))
	total := Q2(net.Add(vat))

	return Entry{
		Date:        in.Date,
		Description: in.Description,
		Lines: []Line{
			{AccountCode: s.acc.CreditiClienti, Dare: total},
			{AccountCode: s.acc.VenditePrestazioni, Avere: net},
			{AccountCode: s.acc.IVAADebito, Avere: vat},
		},
		Document:      in.DocNo,
		DocumentDate:  in.DocDate,
		Party:         in.Party,
		TaxableAmount: &net,
		VATRate:       &rate,
		VATAmount:     &vat,
	}
}

// PostSalesInvoice builds and posts a customer invoice with a derived
// idempotence key.
func (s *Service) PostSalesInvoice(ctx context.Context, in InvoiceInput, userID string, opts PostOptions) Result {
	if opts.IdempotenceKey == "" {
		opts.IdempotenceKey = DefaultIdempotenceKey("SALES", in.Date, in.DocNo, in.Description)
	}
	return s.engine.Post(ctx, s.BuildSalesInvoice(in), userID, opts)
}

// BuildPurchaseInvoice builds a supplier invoice:
// dare costi (net), dare IVA a credito, avere debiti fornitori (gross).
func (s *Service) BuildPurchaseInvoice(in InvoiceInput) Entry {
	net := Q2(in.NetAmount)
	rate := Q2(in.VATRate)
	vat := Q2(net.Mul(rate))
	total := Q2(net.Add(vat))

	expense := in.ExpenseAccount
	if expense == "" {
		expense = s.acc.CostiServizi
	}

	return Entry{
		Date:        in.Date,
		Description: in.Description,
		Lines: []Line{
			{AccountCode: expense, Dare: net},
			{AccountCode: s.acc.IVAACredito, Dare: vat},
			{AccountCode: s.acc.DebitiFornitori, Avere: total},
		},
		Document:      in.DocNo,
		DocumentDate:  in.DocDate,
		Party:         in.Party,
		TaxableAmount: &net,
		VATRate:       &rate,
		VATAmount:     &vat,
	}
}

// PostPurchaseInvoice builds and posts a supplier invoice with a derived
// idempotence key.
func (s *Service) PostPurchaseInvoice(ctx context.Context, in InvoiceInput, userID string, opts PostOptions) Result {
	if opts.IdempotenceKey == "" {
		opts.IdempotenceKey = DefaultIdempotenceKey("PURCHASE", in.Date, in.DocNo, in.Description)
	}
	return s.engine.Post(ctx, s.BuildPurchaseInvoice(in), userID, opts)
}

// PaymentInput is the shared shape of receipts, payments, and fees.
type PaymentInput struct {
	Date        string
	Party       string
	Description string
	Amount      decimal.Decimal

	// BankAccount overrides the default bank code.
	BankAccount string
}

func (s *Service) bankAccount(in PaymentInput) string {
	if in.BankAccount != "" {
		return in.BankAccount
	}
	return s.acc.BancaCC
}

// BuildCashReceipt builds a customer collection: dare banca, avere crediti.
func (s *Service) BuildCashReceipt(in PaymentInput) Entry {
	amt := Q2(in.Amount)
	return Entry{
		Date:        in.Date,
		Description: in.Description,
		Lines: []Line{
			{AccountCode: s.bankAccount(in), Dare: amt},
			{AccountCode: s.acc.CreditiClienti, Avere: amt},
		},
		Party: in.Party,
	}
}

// PostCashReceipt builds and posts a customer collection.
func (s *Service) PostCashReceipt(ctx context.Context, in PaymentInput, userID string, opts PostOptions) Result {
	if opts.IdempotenceKey == "" {
		opts.IdempotenceKey = DefaultIdempotenceKey("RECEIPT", in.Date, "", in.Description)
	}
	return s.engine.Post(ctx, s.BuildCashReceipt(in), userID, opts)
}

// BuildCashPayment builds a supplier payment: dare debiti, avere banca.
func (s *Service) BuildCashPayment(in PaymentInput) Entry {
	amt := Q2(in.Amount)
	return Entry{
		Date:        in.Date,
		Description: in.Description,
		Lines: []Line{
			{AccountCode: s.acc.DebitiFornitori, Dare: amt},
			{AccountCode: s.bankAccount(in), Avere: amt},
		},
		Party: in.Party,
	}
}

// PostCashPayment builds and posts a supplier payment.
func (s *Service) PostCashPayment(ctx context.Context, in PaymentInput, userID string, opts PostOptions) Result {
	if opts.IdempotenceKey == "" {
		opts.IdempotenceKey = DefaultIdempotenceKey("PAYMENT", in.Date, "", in.Description)
	}
	return s.engine.Post(ctx, s.BuildCashPayment(in), userID, opts)
}

// BuildBankFee builds a bank charge: dare oneri finanziari, avere banca.
func (s *Service) BuildBankFee(in PaymentInput) Entry {
	fee := Q2(in.Amount)
	return Entry{
		Date:        in.Date,
		Description: in.Description,
		Lines: []Line{
			{AccountCode: s.acc.OneriFinanziari, Dare: fee},
			{AccountCode: s.bankAccount(in), Avere: fee},
		},
	}
}

// PostBankFee builds and posts a bank charge.
func (s *Service) PostBankFee(ctx context.Context, in PaymentInput, userID string, opts PostOptions) Result {
	if opts.IdempotenceKey == "" {
		opts.IdempotenceKey = DefaultIdempotenceKey("BANKFEE", in.Date, "", in.Description)
	}
	return s.engine.Post(ctx, s.BuildBankFee(in), userID, opts)
}

// ReverseEntry builds and posts the mirror of an existing entry. The engine
// re-runs the existence, double-reversal, and period checks inside its own
// validation, so a race between two reversals of the same entry falls to the
// unique reversal link.
func (s *Service) ReverseEntry(ctx context.Context, originalID int64, userID, description string, opts PostOptions) Result {
	if description == "" {
		description = "Storno"
	}
	reversal, err := s.query.BuildReversal(ctx, originalID, description)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Failed(Error{
				Kind:    KindNotFound,
				Message: fmt.Sprintf("entry %d does not exist", originalID),
			})
		}
		return Failed(dbError(err))
	}
	if opts.IdempotenceKey == "" {
		opts.IdempotenceKey = DefaultIdempotenceKey("REV", reversal.Date, reversal.Document, description)
	}
	return s.engine.Post(ctx, reversal, userID, opts)
}
