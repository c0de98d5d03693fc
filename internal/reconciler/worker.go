// Package reconciler sweeps up bookings whose hold TTL lapsed without a
// payment resolution, and slots orphaned by crashed processes. Every
// transition it applies goes through the same status-filtered updates the
// request path uses, so racing a live request is safe: one side wins, the
// other becomes a no-op.
package reconciler

import (
	"context"
	"time"

	"therabook/internal/bookings/repository"
	"therabook/internal/bookings/service"
	"therabook/pkg/config"
	"therabook/pkg/model"
)

const sweepBatchSize = 100

type Worker struct {
	bookingRepo repository.BookingRepository
	slotRepo    repository.SlotRepository
	svc         service.BookingService
	cfg         *config.Config
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewWorker(
	bookingRepo repository.BookingRepository,
	slotRepo repository.SlotRepository,
	svc service.BookingService,
	cfg *config.Config,
) *Worker {
	return &Worker{
		bookingRepo: bookingRepo,
		slotRepo:    slotRepo,
		svc:         svc,
		cfg:         cfg,
		done:        make(chan struct{}),
	}
}

// Start launches the periodic sweep. It returns immediately; Stop blocks
// until the in-flight sweep finishes.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.cfg.ReconcileInterval)
		defer ticker.Stop()

		w.cfg.Log.Info("Reconciliation worker started",
			"interval", w.cfg.ReconcileInterval)

		for {
			select {
			case <-ctx.Done():
				w.cfg.Log.Info("Reconciliation worker stopping")
				return
			case <-ticker.C:
				w.Run(ctx)
			}
		}
	}()
}

func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}

// Run executes one sweep. Exported so operators can trigger a sweep
// on demand and tests can drive it without the ticker.
func (w *Worker) Run(ctx context.Context) {
	now := time.Now().UTC()

	expired := w.sweepBookings(ctx, now)
	released := w.sweepOrphanedSlots(ctx, now)

	if expired > 0 || released > 0 {
		w.cfg.Log.Info("Reconciliation sweep completed",
			"bookings_resolved", expired,
			"orphaned_slots_released", released,
		)
	}
}

func (w *Worker) sweepBookings(ctx context.Context, now time.Time) int {
	bookings, err := w.bookingRepo.FindExpiredUnresolved(ctx, now, sweepBatchSize)
	if err != nil {
		w.cfg.Log.Error("Failed to load expired bookings", "error", err)
		return 0
	}

	resolved := 0
	for _, booking := range bookings {
		if ctx.Err() != nil {
			return resolved
		}
		if w.resolveBooking(ctx, booking) {
			resolved++
		}
	}
	return resolved
}

// resolveBooking decides one expired booking. A booking that reached the
// gateway is asked about first: a late success still settles as paid even
// though the hold lapsed, because the client was charged. Only when the
// gateway has nothing settled does the booking expire.
func (w *Worker) resolveBooking(ctx context.Context, booking *model.Booking) bool {
	if booking.PaymentRef != "" {
		resolved, err := w.svc.ResolvePayment(ctx, booking)
		if err != nil {
			// Gateway down: payment state is unknown, leave the booking
			// for the next sweep rather than guessing.
			w.cfg.Log.Warn("Skipping booking, gateway unavailable",
				"booking_id", booking.ID, "error", err)
			return false
		}
		if resolved.Status.Terminal() {
			return true
		}
		booking = resolved
	}

	if err := w.svc.Expire(ctx, booking); err != nil {
		w.cfg.Log.Error("Failed to expire booking",
			"booking_id", booking.ID, "error", err)
		return false
	}
	return true
}

// sweepOrphanedSlots releases held slots whose hold lapsed but whose
// booking no longer references them, e.g. after a crash between the slot
// claim and the booking insert.
func (w *Worker) sweepOrphanedSlots(ctx context.Context, now time.Time) int64 {
	released, err := w.slotRepo.ForceRelease(ctx, now)
	if err != nil {
		w.cfg.Log.Error("Failed to release orphaned slots", "error", err)
		return 0
	}
	return released
}
