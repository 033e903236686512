package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"paisape/internal/service"
)

const (
	reconcileBatchSize = 100
	reconcileTimeout   = 30 * time.Second
	pruneInterval      = 5 * time.Minute
)

// ReferralReconciler completa referidos pendientes cuyo referee ya verificó.
type ReferralReconciler interface {
	ReconcilePending(ctx context.Context, limit int) (int, error)
}

// Scheduler agrupa los jobs periódicos del servicio.
type Scheduler struct {
	logger     *zap.Logger
	sched      gocron.Scheduler
	reconciler ReferralReconciler
	pruners    []service.Pruner
	now        func() time.Time
}

// NewScheduler registra la reconciliación de referidos cada interval y la
// limpieza de stores en memoria. No arranca hasta Start.
func NewScheduler(
	logger *zap.Logger,
	reconciler ReferralReconciler,
	interval time.Duration,
	pruners ...service.Pruner,
) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	s := &Scheduler{
		logger:     logger,
		sched:      sched,
		reconciler: reconciler,
		pruners:    pruners,
		now:        time.Now,
	}

	if reconciler != nil && interval > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(s.reconcileReferrals),
			gocron.WithName("reconcile-referrals"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return nil, fmt.Errorf("register reconcile job: %w", err)
		}
	}
	if len(pruners) > 0 {
		if _, err := sched.NewJob(
			gocron.DurationJob(pruneInterval),
			gocron.NewTask(s.pruneStores),
			gocron.WithName("prune-memory-stores"),
		); err != nil {
			return nil, fmt.Errorf("register prune job: %w", err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.sched.Jobs())))
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) reconcileReferrals() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	completed, err := s.reconciler.ReconcilePending(ctx, reconcileBatchSize)
	if err != nil {
		s.logger.Error("reconcile referrals failed", zap.Error(err), zap.Int("completed", completed))
		return
	}
	if completed > 0 {
		s.logger.Info("reconciled pending referrals", zap.Int("completed", completed))
	}
}

func (s *Scheduler) pruneStores() {
	now := s.now()
	removed := 0
	for _, p := range s.pruners {
		removed += p.Prune(now)
	}
	if removed > 0 {
		s.logger.Debug("pruned expired entries", zap.Int("removed", removed))
	}
}
