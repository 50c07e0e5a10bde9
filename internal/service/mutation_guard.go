package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-scheduling-api/internal/conflict"
	"github.com/noah-isme/sma-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
	"github.com/noah-isme/sma-scheduling-api/pkg/logger"
)

// Mutation is a pending create or update of exams or timetable entries.
type Mutation interface {
	// Kind labels the mutation for logs and metrics.
	Kind() models.AllocationKind
	// Proposals returns the single-date allocations the write would claim.
	Proposals() []models.Allocation
	// Snapshot loads the latest existing allocations for the proposal dates.
	Snapshot(ctx context.Context) ([]models.Allocation, error)
	// Commit persists the write together with its (informational) report.
	Commit(ctx context.Context, report *models.ConflictReport) error
}

// MutationGuard validates scheduling writes before and at commit time.
type MutationGuard struct {
	detector *conflict.Detector
	locker   ResourceLocker
	metrics  *MetricsService
	logger   *zap.Logger
	lockWait time.Duration
}

// NewMutationGuard wires a guard. A nil locker falls back to an in-memory one.
func NewMutationGuard(detector *conflict.Detector, locker ResourceLocker, metrics *MetricsService, logger *zap.Logger, lockWait time.Duration) *MutationGuard {
	if detector == nil {
		detector = conflict.NewDetector(conflict.DefaultPolicy())
	}
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}
	return &MutationGuard{detector: detector, locker: locker, metrics: metrics, logger: logger, lockWait: lockWait}
}

// Check runs detection against the current snapshot without persisting.
func (g *MutationGuard) Check(ctx context.Context, m Mutation) (*models.ConflictReport, error) {
	existing, err := m.Snapshot(ctx)
	if err != nil {
		return nil, asAppError(err, appErrors.ErrInternal, "failed to load existing allocations")
	}
	return g.detect(m, existing)
}

// Apply validates m, serialises on its rooms and faculty, re-validates against
// a fresh snapshot and commits. A blocking conflict found up front yields a
// CONFLICT error; one that only appears on re-validation yields STALE_SNAPSHOT.
func (g *MutationGuard) Apply(ctx context.Context, m Mutation) (*models.ConflictReport, error) {
	kind := m.Kind()
	log := logger.WithContext(ctx, g.logger).With(zap.String("kind", string(kind)))
	report, err := g.Check(ctx, m)
	if err != nil {
		g.metrics.ObserveGuardOutcome(kind, outcomeFor(err))
		return nil, err
	}
	if report.HasBlockingConflict {
		g.metrics.ObserveGuardOutcome(kind, OutcomeRejected)
		log.Info("scheduling mutation rejected", zap.Int("conflicts", len(report.Conflicts)))
		return nil, conflictError(report)
	}

	keys := LockKeys(m.Proposals())
	lockCtx, cancel := context.WithTimeout(ctx, g.lockWait)
	start := time.Now()
	release, err := g.locker.Acquire(lockCtx, keys)
	cancel()
	g.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		g.metrics.ObserveGuardOutcome(kind, OutcomeFailed)
		log.Warn("scheduling lock not acquired", zap.Strings("keys", keys), zap.Error(err))
		return nil, asAppError(err, appErrors.ErrLockTimeout, "failed to acquire scheduling locks")
	}
	defer release()

	latest, err := g.Check(ctx, m)
	if err != nil {
		g.metrics.ObserveGuardOutcome(kind, outcomeFor(err))
		return nil, err
	}
	if latest.HasBlockingConflict {
		g.metrics.ObserveGuardOutcome(kind, OutcomeStale)
		log.Info("scheduling snapshot went stale before commit", zap.Int("conflicts", len(latest.Conflicts)))
		return nil, staleError(latest)
	}

	if err := m.Commit(ctx, latest); err != nil {
		g.metrics.ObserveGuardOutcome(kind, OutcomeFailed)
		return nil, asAppError(err, appErrors.ErrInternal, "failed to persist allocation")
	}
	g.metrics.ObserveGuardOutcome(kind, OutcomeCommitted)
	if !latest.Empty() {
		log.Info("scheduling mutation committed with warnings", zap.Int("conflicts", len(latest.Conflicts)))
	}
	return latest, nil
}

func (g *MutationGuard) detect(m Mutation, existing []models.Allocation) (*models.ConflictReport, error) {
	start := time.Now()
	report, err := g.detector.DetectAll(m.Proposals(), existing)
	g.metrics.ObserveDetection(m.Kind(), report, time.Since(start))
	if err != nil {
		return nil, err
	}
	return report, nil
}

func conflictError(report *models.ConflictReport) error {
	domainErr := &models.ConflictError{Message: "proposal collides with existing allocations", Report: report}
	return appErrors.Wrap(domainErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "schedule conflict: "+summarise(report))
}

func staleError(report *models.ConflictReport) error {
	domainErr := &models.StaleSnapshotError{Message: "allocations changed before commit", Report: report}
	return appErrors.Wrap(domainErr, appErrors.ErrStaleSnapshot.Code, appErrors.ErrStaleSnapshot.Status, appErrors.ErrStaleSnapshot.Message)
}

func summarise(report *models.ConflictReport) string {
	for _, c := range report.Conflicts {
		return c.Message
	}
	return "no conflicts"
}

func outcomeFor(err error) string {
	if appErrors.FromError(err).Code == appErrors.ErrValidation.Code {
		return OutcomeInvalid
	}
	return OutcomeFailed
}

// asAppError keeps typed errors and wraps everything else with fallback.
func asAppError(err error, fallback *appErrors.Error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Wrap(err, fallback.Code, fallback.Status, message)
}
