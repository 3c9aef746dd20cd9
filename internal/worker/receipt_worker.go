package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"

	"dentalstudio/internal/amqp"
	"dentalstudio/internal/core"
	"dentalstudio/internal/directory"
	"dentalstudio/internal/log"
	"dentalstudio/internal/pdf"
	"dentalstudio/internal/sheets"
	"dentalstudio/internal/storage"
)

// Store is the persistence the receipt worker needs.
type Store interface {
	GetQuotation(ctx context.Context, id string) (core.Quotation, error)
	SaveCommissionExpenses(ctx context.Context, expenses []core.CommissionExpense) (int, error)
	GetPendingReceipts(ctx context.Context, limit int) ([]storage.PendingReceipt, error)
	MarkReceiptDone(ctx context.Context, paymentID string) error
	MarkReceiptError(ctx context.Context, paymentID string) error
	GetPendingSyncExpenses(ctx context.Context, limit int) ([]core.CommissionExpense, error)
	MarkExpenseSynced(ctx context.Context, id, rowRef string) error
	MarkExpenseSyncError(ctx context.Context, id string) error
}

// ReceiptWorker turns accepted payments into a quotation PDF on disk and
// per-doctor commission expenses, and exports those expenses to the sheet.
type ReceiptWorker struct {
	store       Store
	directory   directory.Directory
	exporter    pdf.Exporter
	sheets      sheets.CommissionExpenseWriter
	receiptsDir string
	batchSize   int
	// Sheets allows 60 writes per minute per user.
	limiter *rate.Limiter
	// Held by message handling and Sweep so a pending expense is read and
	// appended by one of them only.
	mu sync.Mutex
}

func NewReceiptWorker(store Store, dir directory.Directory, exporter pdf.Exporter, writer sheets.CommissionExpenseWriter, receiptsDir string, batchSize int) *ReceiptWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ReceiptWorker{
		store:       store,
		directory:   dir,
		exporter:    exporter,
		sheets:      writer,
		receiptsDir: receiptsDir,
		batchSize:   batchSize,
		limiter:     rate.NewLimiter(rate.Limit(1), 5),
	}
}

// HandlePaymentRegistered processes one payment.registered message. It is
// safe to run twice for the same payment.
func (w *ReceiptWorker) HandlePaymentRegistered(ctx context.Context, msg *amqp.PaymentRegisteredMessage) error {
	slog.InfoContext(ctx, "Processing payment message",
		log.FieldQuotationID, msg.QuotationID,
		log.FieldPaymentID, msg.PaymentID,
		log.FieldAmount, msg.Amount)

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.processReceipt(ctx, msg.QuotationID, msg.PaymentID); err != nil {
		return err
	}
	if err := w.ExportPendingExpenses(ctx); err != nil {
		// Expenses stay pending; the scheduled sweep retries the export.
		slog.WarnContext(ctx, "Commission export failed", log.FieldPaymentID, msg.PaymentID, "error", err)
	}
	return nil
}

func (w *ReceiptWorker) processReceipt(ctx context.Context, quotationID, paymentID string) error {
	q, err := w.store.GetQuotation(ctx, quotationID)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Quotation no longer exists, skipping receipt",
			log.FieldQuotationID, quotationID, log.FieldPaymentID, paymentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get quotation %s: %w", quotationID, err)
	}

	p, ok := findPayment(q, paymentID)
	if !ok {
		slog.WarnContext(ctx, "Payment not found on quotation, skipping receipt",
			log.FieldQuotationID, quotationID, log.FieldPaymentID, paymentID)
		return nil
	}

	names, err := directory.DoctorNames(ctx, w.directory)
	if err != nil {
		return fmt.Errorf("doctor names: %w", err)
	}
	expenses := core.CommissionExpenses(q, p, names)
	if len(expenses) > 0 {
		n, err := w.store.SaveCommissionExpenses(ctx, expenses)
		if err != nil {
			return fmt.Errorf("save commission expenses: %w", err)
		}
		slog.InfoContext(ctx, "Commission expenses recorded", log.FieldPaymentID, paymentID, "new", n, "total", len(expenses))
	}

	if err := w.writeReceipt(ctx, q, paymentID); err != nil {
		return err
	}
	if err := w.store.MarkReceiptDone(ctx, paymentID); err != nil {
		return fmt.Errorf("mark receipt done: %w", err)
	}
	return nil
}

func findPayment(q core.Quotation, paymentID string) (core.Payment, bool) {
	for _, p := range q.Payments {
		if p.ID == paymentID {
			return p, true
		}
	}
	return core.Payment{}, false
}

// ReceiptPath is where the PDF of a payment's quotation is written.
func (w *ReceiptWorker) ReceiptPath(quotationID, paymentID string) string {
	return filepath.Join(w.receiptsDir, fmt.Sprintf("cotizacion-%s-%s.pdf", quotationID, paymentID))
}

// writeReceipt renders the quotation as of this payment and writes it
// atomically through a temp file.
func (w *ReceiptWorker) writeReceipt(ctx context.Context, q core.Quotation, paymentID string) error {
	if w.exporter == nil {
		return nil
	}
	data, err := w.exporter.Export(core.Summarize(q))
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	if err := os.MkdirAll(w.receiptsDir, 0o755); err != nil {
		return fmt.Errorf("create receipts dir: %w", err)
	}
	path := w.ReceiptPath(q.ID, paymentID)
	tmp, err := os.CreateTemp(w.receiptsDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp.Name(), 0o644)
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), path)
	}
	if werr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write receipt: %w", werr)
	}
	slog.InfoContext(ctx, "Receipt written", log.FieldQuotationID, q.ID, log.FieldPaymentID, paymentID, "path", path, "bytes", len(data))
	return nil
}

// ProcessPendingReceipts handles payments whose message was lost or failed.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ReceiptWorker) ProcessPendingReceipts(ctx context.Context) error {
	pending, err := w.store.GetPendingReceipts(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending receipts: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending receipts", "count", len(pending))
	for _, r := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.processReceipt(ctx, r.QuotationID, r.PaymentID); err != nil {
			slog.ErrorContext(ctx, "Failed to process receipt",
				log.FieldQuotationID, r.QuotationID, log.FieldPaymentID, r.PaymentID, "error", err)
			if err := w.store.MarkReceiptError(ctx, r.PaymentID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark receipt error", log.FieldPaymentID, r.PaymentID, "error", err)
			}
		}
	}
	return nil
}

// ExportPendingExpenses appends unexported commission expenses to the sheet
// in date order. A failed row is flagged and retried on the next run.
func (w *ReceiptWorker) ExportPendingExpenses(ctx context.Context) error {
	if w.sheets == nil {
		return nil
	}
	expenses, err := w.store.GetPendingSyncExpenses(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending expenses: %w", err)
	}

	var failed int
	for _, e := range expenses {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		ref, err := w.sheets.Append(ctx, e)
		if err != nil {
			failed++
			slog.ErrorContext(ctx, "Failed to export commission expense",
				"id", e.ID, log.FieldDoctorID, e.DoctorID, "error", err)
			if err := w.store.MarkExpenseSyncError(ctx, e.ID); err != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", e.ID, "error", err)
			}
			continue
		}
		if err := w.store.MarkExpenseSynced(ctx, e.ID, ref); err != nil {
			slog.WarnContext(ctx, "Failed to mark expense as synced", "id", e.ID, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Exported commission expense", "id", e.ID, log.FieldSheetsRef, ref)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d commission expenses failed to export", failed, len(expenses))
	}
	return nil
}
