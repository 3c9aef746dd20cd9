package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"dentalstudio/internal/amqp"
)

// Consumer delivers payment.registered messages.
type Consumer interface {
	ConsumePaymentRegistered(ctx context.Context, handler func(context.Context, *amqp.PaymentRegisteredMessage) error) error
}

// Sweep runs the pending receipt and export jobs once. It never overlaps
// another sweep or a message being handled.
func (w *ReceiptWorker) Sweep(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ProcessPendingReceipts(ctx); err != nil {
		slog.ErrorContext(ctx, "Pending receipt sweep failed", "error", err)
	}
	if err := w.ExportPendingExpenses(ctx); err != nil {
		slog.ErrorContext(ctx, "Pending export sweep failed", "error", err)
	}
}

// Run consumes payment messages and runs Sweep on the cron schedule until ctx
// is cancelled. consumer may be nil, in which case only the schedule runs.
func (w *ReceiptWorker) Run(ctx context.Context, consumer Consumer, schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { w.Sweep(ctx) }); err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", schedule, err)
	}

	// Catch up on anything left from a previous run before consuming.
	w.Sweep(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.Start()
		slog.InfoContext(ctx, "Receipt scheduler started", "schedule", schedule)
		<-ctx.Done()
		<-c.Stop().Done()
		slog.InfoContext(ctx, "Receipt scheduler stopped")
		return nil
	})
	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumePaymentRegistered(ctx, w.HandlePaymentRegistered)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
