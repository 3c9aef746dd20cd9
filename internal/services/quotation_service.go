package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dentalstudio/internal/core"
	"dentalstudio/internal/directory"
	"dentalstudio/internal/log"
	"dentalstudio/internal/storage"
)

// ErrNotFound is returned when a quotation, service line, doctor or catalog
// entry does not exist.
var ErrNotFound = errors.New("not found")

// QuotationStore is the persistence the service needs.
type QuotationStore interface {
	SaveQuotation(ctx context.Context, q core.Quotation) error
	GetQuotation(ctx context.Context, id string) (core.Quotation, error)
	ListQuotations(ctx context.Context) ([]core.Quotation, error)
	DeleteQuotation(ctx context.Context, id string) error
	AppendPayment(ctx context.Context, quotationID string, p core.Payment, moves []core.CashMovement) error
	CashMovementsOn(ctx context.Context, day string) ([]core.CashMovement, error)
	ListCommissionExpenses(ctx context.Context) ([]core.CommissionExpense, error)
}

// PaymentPublisher announces accepted payments to the receipt worker.
type PaymentPublisher interface {
	PublishPaymentRegistered(ctx context.Context, quotationID, paymentID string, amount int64) error
}

// ServiceLineInput adds a catalog service to a quotation. UnitPrice overrides
// the catalog price when set.
type ServiceLineInput struct {
	SpecialtyID string
	ServiceID   string
	Quantity    int
	UnitPrice   *int64
}

// ServiceLineUpdate changes price and/or quantity of a line.
type ServiceLineUpdate struct {
	UnitPrice *int64
	Quantity  *int
}

// CommissionUpdate sets a doctor's allocation on a line. A nil Value only
// switches the mode and keeps the current amount.
type CommissionUpdate struct {
	DoctorID string
	Mode     core.CommissionMode
	Value    *int64
}

type PaymentInput struct {
	Amount            int64
	PaymentMethod     core.PaymentMethod
	CashAmount        int64
	QRAmount          int64
	DoctorCommissions map[string]int64
}

// QuotationService orchestrates quotation operations across the ledger,
// SQLite and AMQP. Mutations of one quotation are serialized.
type QuotationService struct {
	store     QuotationStore
	directory directory.Directory
	publisher PaymentPublisher
	logger    *log.StructuredLogger
	locks     *keyedMutex
	now       func() time.Time
	newID     func() string
}

type Option func(*QuotationService)

func WithClock(now func() time.Time) Option {
	return func(s *QuotationService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *QuotationService) { s.newID = newID }
}

func WithLogger(l *log.Logger) Option {
	return func(s *QuotationService) { s.logger = log.NewStructuredLogger(l) }
}

// NewQuotationService wires the service. publisher may be nil, in which case
// payments are stored without publishing events.
func NewQuotationService(store QuotationStore, dir directory.Directory, publisher PaymentPublisher, opts ...Option) *QuotationService {
	s := &QuotationService{
		store:     store,
		directory: dir,
		publisher: publisher,
		locks:     newKeyedMutex(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewStructuredLogger(&log.Logger{Logger: slog.Default()})
	}
	return s
}

func notFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// CreateQuotation creates a quotation dated now with the given catalog lines.
func (s *QuotationService) CreateQuotation(ctx context.Context, clientName, phone string, lines []ServiceLineInput) (core.Quotation, error) {
	q := core.Quotation{
		ID:         s.newID(),
		ClientName: strings.TrimSpace(clientName),
		Phone:      strings.TrimSpace(phone),
		Date:       s.now().UTC(),
	}
	for _, in := range lines {
		line, err := s.buildLine(ctx, in)
		if err != nil {
			return core.Quotation{}, err
		}
		q.Services = append(q.Services, line)
	}
	if err := q.Validate(); err != nil {
		return core.Quotation{}, err
	}
	if err := s.store.SaveQuotation(ctx, q); err != nil {
		return core.Quotation{}, fmt.Errorf("save quotation: %w", err)
	}
	slog.InfoContext(ctx, "Quotation created", log.FieldQuotationID, q.ID, "services", len(q.Services))
	return q, nil
}

func (s *QuotationService) buildLine(ctx context.Context, in ServiceLineInput) (core.ServiceLine, error) {
	qty := in.Quantity
	if qty == 0 {
		qty = 1
	}
	line, err := directory.NewServiceLine(ctx, s.directory, in.SpecialtyID, in.ServiceID, qty)
	if err != nil {
		return core.ServiceLine{}, notFound(err)
	}
	if in.UnitPrice != nil {
		if err := core.SetUnitPrice(&line, *in.UnitPrice); err != nil {
			return core.ServiceLine{}, err
		}
	}
	return line, nil
}

func (s *QuotationService) GetQuotation(ctx context.Context, id string) (core.Quotation, error) {
	q, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return core.Quotation{}, notFound(err)
	}
	return q, nil
}

func (s *QuotationService) ListQuotations(ctx context.Context) ([]core.Quotation, error) {
	return s.store.ListQuotations(ctx)
}

func (s *QuotationService) DeleteQuotation(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return notFound(s.store.DeleteQuotation(ctx, id))
}

// mutate loads the quotation under its lock, applies fn and saves the result.
// Nothing is saved when fn fails.
func (s *QuotationService) mutate(ctx context.Context, id, op string, fn func(q *core.Quotation) error) (core.Quotation, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	q, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return core.Quotation{}, notFound(err)
	}
	if err := fn(&q); err != nil {
		s.logRejection(ctx, id, op, err)
		return core.Quotation{}, err
	}
	if err := s.store.SaveQuotation(ctx, q); err != nil {
		return core.Quotation{}, fmt.Errorf("save quotation: %w", err)
	}
	return q, nil
}

func (s *QuotationService) logRejection(ctx context.Context, quotationID, op string, err error) {
	if ve, ok := core.AsValidationError(err); ok {
		s.logger.LogRejected(ctx, quotationID, op, ve.Kind(), ve.DoctorID, err)
	}
}

func lineAt(q *core.Quotation, index int) (*core.ServiceLine, error) {
	if index < 0 || index >= len(q.Services) {
		return nil, fmt.Errorf("%w: service line %d", ErrNotFound, index)
	}
	return &q.Services[index], nil
}

func (s *QuotationService) AddServiceLine(ctx context.Context, quotationID string, in ServiceLineInput) (core.Quotation, error) {
	line, err := s.buildLine(ctx, in)
	if err != nil {
		return core.Quotation{}, err
	}
	return s.mutate(ctx, quotationID, log.OpUpdate, func(q *core.Quotation) error {
		q.Services = append(q.Services, line)
		return nil
	})
}

func (s *QuotationService) RemoveServiceLine(ctx context.Context, quotationID string, index int) (core.Quotation, error) {
	return s.mutate(ctx, quotationID, log.OpUpdate, func(q *core.Quotation) error {
		if _, err := lineAt(q, index); err != nil {
			return err
		}
		q.Services = append(q.Services[:index:index], q.Services[index+1:]...)
		return nil
	})
}

// UpdateServiceLine reprices a line; allocations follow the new subtotal.
func (s *QuotationService) UpdateServiceLine(ctx context.Context, quotationID string, index int, upd ServiceLineUpdate) (core.Quotation, error) {
	return s.mutate(ctx, quotationID, log.OpUpdate, func(q *core.Quotation) error {
		line, err := lineAt(q, index)
		if err != nil {
			return err
		}
		price, qty := line.UnitPrice, line.Quantity
		if upd.UnitPrice != nil {
			price = *upd.UnitPrice
		}
		if upd.Quantity != nil {
			qty = *upd.Quantity
		}
		return core.Reprice(line, price, qty)
	})
}

func (s *QuotationService) UpdateCommission(ctx context.Context, quotationID string, index int, upd CommissionUpdate) (core.Quotation, error) {
	return s.mutate(ctx, quotationID, log.OpUpdate, func(q *core.Quotation) error {
		line, err := lineAt(q, index)
		if err != nil {
			return err
		}
		if upd.Value == nil {
			return core.SetCommissionMode(line, upd.DoctorID, upd.Mode)
		}
		return core.UpdateCommissionAllocation(line, upd.DoctorID, *upd.Value, upd.Mode)
	})
}

// RegisterPayment validates and appends a payment, stores it with its cash
// movements and publishes payment.registered. A publish failure is logged;
// the receipt worker's pending sweep picks the payment up later.
func (s *QuotationService) RegisterPayment(ctx context.Context, quotationID string, in PaymentInput) (core.Payment, core.Quotation, error) {
	unlock := s.locks.Lock(quotationID)
	defer unlock()

	q, err := s.store.GetQuotation(ctx, quotationID)
	if err != nil {
		return core.Payment{}, core.Quotation{}, notFound(err)
	}

	p := core.Payment{
		ID:                s.newID(),
		Date:              s.now().UTC(),
		Amount:            in.Amount,
		PaymentMethod:     in.PaymentMethod,
		CashAmount:        in.CashAmount,
		QRAmount:          in.QRAmount,
		DoctorCommissions: in.DoctorCommissions,
	}
	if err := core.AppendPayment(&q, p); err != nil {
		s.logRejection(ctx, quotationID, log.OpPay, err)
		return core.Payment{}, core.Quotation{}, err
	}
	p = q.Payments[len(q.Payments)-1]

	if err := s.store.AppendPayment(ctx, quotationID, p, core.CashMovements(q, p)); err != nil {
		return core.Payment{}, core.Quotation{}, fmt.Errorf("save payment: %w", err)
	}
	s.logger.LogPaymentRegistered(ctx, quotationID, string(q.Status()), p.ID, p.Amount, string(p.PaymentMethod))

	if s.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping payment message", log.FieldPaymentID, p.ID)
	} else if err := s.publisher.PublishPaymentRegistered(ctx, quotationID, p.ID, p.Amount); err != nil {
		s.logger.LogError(ctx, "Failed to publish payment message", err, log.OpPay,
			log.NewFields().WithQuotation(quotationID, "").WithPayment(p.ID, p.Amount, string(p.PaymentMethod)))
	}
	return p, q, nil
}

// SuggestSplit proposes how much of amount goes to each doctor.
func (s *QuotationService) SuggestSplit(ctx context.Context, quotationID string, amount int64) (map[string]int64, error) {
	q, err := s.GetQuotation(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, &core.ValidationError{Err: core.ErrInvalidAmount, Details: fmt.Sprintf("amount %d", amount)}
	}
	return core.SuggestPaymentSplit(q, amount), nil
}

func (s *QuotationService) Summary(ctx context.Context, quotationID string) (core.QuotationSummary, error) {
	q, err := s.GetQuotation(ctx, quotationID)
	if err != nil {
		return core.QuotationSummary{}, err
	}
	return core.Summarize(q), nil
}

// DoctorCommissionRow is a report row with the doctor's display name.
type DoctorCommissionRow struct {
	core.DoctorCommission
	DoctorName string `json:"doctorName"`
}

// CommissionReport returns pending commissions per doctor across all quotations.
func (s *QuotationService) CommissionReport(ctx context.Context) ([]DoctorCommissionRow, error) {
	quotations, err := s.store.ListQuotations(ctx)
	if err != nil {
		return nil, err
	}
	names, err := directory.DoctorNames(ctx, s.directory)
	if err != nil {
		return nil, fmt.Errorf("doctor names: %w", err)
	}
	report := core.PendingCommissionsReport(quotations)
	rows := make([]DoctorCommissionRow, 0, len(report))
	for _, r := range report {
		rows = append(rows, DoctorCommissionRow{DoctorCommission: r, DoctorName: names[r.DoctorID]})
	}
	return rows, nil
}

// CommissionExpenseReport groups the recorded commission expenses by doctor.
func (s *QuotationService) CommissionExpenseReport(ctx context.Context) ([]core.DoctorCommissionGroup, error) {
	expenses, err := s.store.ListCommissionExpenses(ctx)
	if err != nil {
		return nil, err
	}
	return core.GroupCommissionExpenses(expenses), nil
}

// CashBoxReport totals the cash movements of a day (YYYY-MM-DD, UTC).
func (s *QuotationService) CashBoxReport(ctx context.Context, day string) (core.CashBox, error) {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return core.CashBox{}, fmt.Errorf("invalid date %q: %w", day, err)
	}
	moves, err := s.store.CashMovementsOn(ctx, day)
	if err != nil {
		return core.CashBox{}, err
	}
	return core.TallyCashBox(day, moves), nil
}

// QuotationsByStatus returns summaries of the quotations in the given status,
// or all of them when status is empty.
func (s *QuotationService) QuotationsByStatus(ctx context.Context, status core.QuotationStatus) ([]core.QuotationSummary, error) {
	quotations, err := s.store.ListQuotations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.QuotationSummary, 0, len(quotations))
	for _, q := range quotations {
		if status != "" && q.Status() != status {
			continue
		}
		out = append(out, core.Summarize(q))
	}
	return out, nil
}

// EligibleDoctors lists commission-earning doctors of a specialty by name.
func (s *QuotationService) EligibleDoctors(ctx context.Context, specialtyID string) ([]directory.Doctor, error) {
	if _, err := s.directory.Specialty(ctx, specialtyID); err != nil {
		return nil, notFound(err)
	}
	doctors, err := directory.EligibleCommissionDoctors(ctx, s.directory, specialtyID)
	if err != nil {
		return nil, err
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].Name < doctors[j].Name })
	return doctors, nil
}

func (s *QuotationService) Doctors(ctx context.Context) ([]directory.Doctor, error) {
	return s.directory.Doctors(ctx)
}

func (s *QuotationService) Specialties(ctx context.Context) ([]directory.Specialty, error) {
	return s.directory.Specialties(ctx)
}
