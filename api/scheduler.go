/*
scheduler.go - Automated crediting scheduler

PURPOSE:
  Periodically credits purchases whose credit date has arrived: every
  PENDENTE purchase with dueDate <= today moves to CREDITADO and its owner
  gets a notification.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Idempotent: the status update only matches rows still PENDENTE, so a
    purchase credited (or cancelled) elsewhere in between is skipped
  - Points never change when crediting; only the status does

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewCreditingScheduler(store, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

  Admins can trigger a run with POST /admin/creditar and read the schedule
  with GET /admin/creditar.

SEE ALSO:
  - loyalty/status.go: Transition rules
  - handlers_notifications.go: How users read the notifications
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/milhas/loyalty-engine/loyalty"
)

// CreditingStore is what the scheduler needs from storage.
type CreditingStore interface {
	loyalty.PurchaseLedger
	CreateNotification(ctx context.Context, n loyalty.Notification) (loyalty.Notification, error)
}

// CreditingScheduler credits due purchases in the background.
type CreditingScheduler struct {
	Store         CreditingStore
	CheckInterval time.Duration
	Enabled       bool

	log   *slog.Logger
	today func() loyalty.Date

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// nextRun is guarded by nextMu, not mu: Stop holds mu while the loop exits.
	nextMu  sync.Mutex
	nextRun time.Time
}

// NewCreditingScheduler creates a new scheduler.
func NewCreditingScheduler(store CreditingStore, logger *slog.Logger) *CreditingScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreditingScheduler{
		Store:         store,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           logger.With("component", "crediting"),
		today:         loyalty.Today,
	}
}

// Start begins the scheduler. A stopped scheduler can be started again.
func (cs *CreditingScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.log.Info("disabled, not starting")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.CheckInterval)
	cs.stop = make(chan struct{})
	cs.setNextRun(time.Now().Add(cs.CheckInterval))
	cs.wg.Add(1)

	go cs.run(cs.ticker, cs.stop)

	cs.log.Info("started", "check_interval", cs.CheckInterval)
}

// Stop stops the scheduler and waits for a running check to finish.
func (cs *CreditingScheduler) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.ticker = nil
		cs.setNextRun(time.Time{})
		cs.log.Info("stopped")
	}
}

// Running reports whether the background loop is active.
func (cs *CreditingScheduler) Running() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.ticker != nil
}

func (cs *CreditingScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cs.wg.Done()

	// Run immediately on start
	cs.checkAndProcess()

	for {
		select {
		case tick := <-ticker.C:
			cs.setNextRun(tick.Add(cs.CheckInterval))
			cs.checkAndProcess()
		case <-stop:
			return
		}
	}
}

func (cs *CreditingScheduler) checkAndProcess() {
	credited, err := cs.CreditDue(context.Background())
	if err != nil {
		cs.log.Error("crediting run failed", "error", err)
		return
	}
	if credited > 0 {
		cs.log.Info("crediting run completed", "credited", credited)
	}
}

// CreditDue credits every pending purchase due on or before today and
// returns how many were credited.
func (cs *CreditingScheduler) CreditDue(ctx context.Context) (int, error) {
	today := cs.today()

	due, err := cs.Store.ListPurchases(ctx, loyalty.PurchaseFilter{
		Status:   loyalty.StatusPending,
		DueUntil: today,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list due purchases: %w", err)
	}

	credited := 0
	for _, p := range due {
		updated, err := loyalty.Transition(ctx, cs.Store, 0, p.ID, loyalty.StatusCredited)
		if errors.Is(err, loyalty.ErrInvalidTransition) {
			cs.log.Debug("purchase changed status concurrently", "purchase_id", p.ID)
			continue
		}
		if err != nil {
			cs.log.Error("failed to credit purchase", "purchase_id", p.ID, "error", err)
			continue
		}
		credited++

		_, err = cs.Store.CreateNotification(ctx, loyalty.Notification{
			UserID:  updated.UserID,
			Title:   "Pontos creditados",
			Message: fmt.Sprintf("%s pontos de \"%s\" foram creditados.", updated.Points.StringFixed(loyalty.PointsScale), updated.Description),
			Kind:    loyalty.NotificationNotice,
		})
		if err != nil {
			cs.log.Warn("failed to notify credit", "purchase_id", p.ID, "error", err)
		}
	}
	return credited, nil
}

// NextRunTime returns when the next scheduled check will occur, or the zero
// time when the scheduler is not running.
func (cs *CreditingScheduler) NextRunTime() time.Time {
	cs.nextMu.Lock()
	defer cs.nextMu.Unlock()
	return cs.nextRun
}

func (cs *CreditingScheduler) setNextRun(t time.Time) {
	cs.nextMu.Lock()
	defer cs.nextMu.Unlock()
	cs.nextRun = t
}
