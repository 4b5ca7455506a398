package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type ApplyError struct {
	ChangeID uuid.UUID `json:"change_id"`
	Code     string    `json:"code"`
	Message  string    `json:"error_message"`
}

type ApplyResult struct {
	AppliedCreates int          `json:"applied_creates"`
	AppliedUpdates int          `json:"applied_updates"`
	AppliedDeletes int          `json:"applied_deletes"`
	Errors         []ApplyError `json:"errors"`
	// SessionMarked is false when nothing was applied or recording applied_at failed.
	SessionMarked bool     `json:"session_marked"`
	Warnings      []string `json:"warnings,omitempty"`
}

func (r *ApplyResult) Applied() int {
	return r.AppliedCreates + r.AppliedUpdates + r.AppliedDeletes
}

type ApplyConfig struct {
	// Concurrency bounds changes applied at once; <= 0 means 1.
	Concurrency int
	// MaxPerSecond throttles change starts; 0 disables throttling.
	MaxPerSecond float64
}

// ApplyService commits approved changes to the listings store, one transaction per change.
type ApplyService interface {
	Apply(ctx context.Context, sessionID uuid.UUID, changeIDs []uuid.UUID, appliedBy string) (*ApplyResult, error)
}

type applyService struct {
	log      *logger.Logger
	metrics  *observability.Metrics
	sessions repos.SessionRepo
	changes  repos.ChangeRepo
	apply    domainagg.ListingApplyAggregate
	locker   ListingLocker
	cfg      ApplyConfig
}

func NewApplyService(
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	sessions repos.SessionRepo,
	changes repos.ChangeRepo,
	apply domainagg.ListingApplyAggregate,
	locker ListingLocker,
	cfg ApplyConfig,
) ApplyService {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &applyService{
		log:      baseLog.With("service", "ApplyService"),
		metrics:  metrics,
		sessions: sessions,
		changes:  changes,
		apply:    apply,
		locker:   locker,
		cfg:      cfg,
	}
}

// Apply processes every selected change independently. A failed change becomes an
// error entry and never stops the others. Once ctx is cancelled no further change
// starts, but a change already running finishes its transaction.
func (s *applyService) Apply(ctx context.Context, sessionID uuid.UUID, changeIDs []uuid.UUID, appliedBy string) (*ApplyResult, error) {
	const op = "ApplyService.Apply"
	if sessionID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	ids := dedupeIDs(changeIDs)
	if len(ids) == 0 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "no change ids selected", nil)
	}
	dbc := dbctx.Context{Ctx: ctx}
	sess, err := s.sessions.GetByID(dbc, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "session not found: "+sessionID.String(), nil)
	}
	appliedBy = strings.TrimSpace(appliedBy)

	ctx, span := observability.Tracer().Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sessionID.String()),
		attribute.Int("apply.changes", len(ids)),
	)

	var limiter *rate.Limiter
	if s.cfg.MaxPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.MaxPerSecond), 1)
	}

	outcomes := make([]changeOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, id := range ids {
		if ctx.Err() != nil {
			outcomes[i] = notStarted(id, ctx.Err())
			continue
		}
		g.Go(func() error {
			outcomes[i] = s.applyOne(ctx, limiter, sessionID, id, appliedBy)
			return nil
		})
	}
	_ = g.Wait()

	res := &ApplyResult{Errors: []ApplyError{}}
	for _, o := range outcomes {
		if o.err != nil {
			res.Errors = append(res.Errors, *o.err)
			continue
		}
		switch o.changeType {
		case types.ChangeTypeCreate:
			res.AppliedCreates++
		case types.ChangeTypeUpdate:
			res.AppliedUpdates++
		case types.ChangeTypeDelete:
			res.AppliedDeletes++
		}
	}
	span.SetAttributes(attribute.Int("apply.applied", res.Applied()), attribute.Int("apply.errors", len(res.Errors)))

	if res.Applied() > 0 {
		if _, err := s.apply.MarkSessionApplied(context.WithoutCancel(ctx), domainagg.MarkSessionAppliedInput{
			SessionID: sessionID,
			AppliedBy: appliedBy,
		}); err != nil {
			res.Warnings = append(res.Warnings, "changes were applied but the session could not be marked applied: "+domainagg.MessageOf(err))
			return res, fmt.Errorf("mark session applied: %w", err)
		}
		res.SessionMarked = true
	}
	s.log.Info("apply finished",
		"session_id", sessionID,
		"applied_by", appliedBy,
		"creates", res.AppliedCreates,
		"updates", res.AppliedUpdates,
		"deletes", res.AppliedDeletes,
		"errors", len(res.Errors),
	)
	return res, nil
}

type changeOutcome struct {
	changeType string
	err        *ApplyError
}

func notStarted(id uuid.UUID, cause error) changeOutcome {
	return changeOutcome{err: &ApplyError{
		ChangeID: id,
		Code:     string(domainagg.CodeRetryable),
		Message:  "apply cancelled before this change started: " + cause.Error(),
	}}
}

func failed(id uuid.UUID, err error) changeOutcome {
	code := domainagg.CodeOf(err)
	if code == "" {
		code = domainagg.CodeInternal
	}
	return changeOutcome{err: &ApplyError{ChangeID: id, Code: string(code), Message: domainagg.MessageOf(err)}}
}

func (s *applyService) applyOne(ctx context.Context, limiter *rate.Limiter, sessionID, changeID uuid.UUID, appliedBy string) changeOutcome {
	if ctx.Err() != nil {
		return notStarted(changeID, ctx.Err())
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return notStarted(changeID, err)
		}
	}
	start := time.Now()

	ch, err := s.changes.GetByID(dbctx.Context{Ctx: ctx}, sessionID, changeID)
	if err != nil {
		return failed(changeID, err)
	}
	if ch == nil {
		return failed(changeID, domainagg.NewError(domainagg.CodeNotFound, "ApplyService.Apply", "change not found: "+changeID.String(), nil))
	}

	unlock, err := s.locker.Lock(ctx, lockKey(ch))
	if err != nil {
		return notStarted(changeID, err)
	}
	defer unlock()

	// From here the change runs to completion regardless of the caller.
	res, err := s.apply.ApplyChange(context.WithoutCancel(ctx), domainagg.ApplyChangeInput{
		SessionID: sessionID,
		ChangeID:  changeID,
		AppliedBy: appliedBy,
	})
	if err != nil {
		out := failed(changeID, err)
		s.metrics.ObserveApply(ch.ChangeType, out.err.Code, time.Since(start))
		s.log.Warn("change apply failed", "session_id", sessionID, "change_id", changeID, "change_type", ch.ChangeType, "error", err)
		return out
	}
	s.metrics.ObserveApply(ch.ChangeType, "applied", time.Since(start))
	return changeOutcome{changeType: res.ChangeType}
}

// lockKey serializes changes that target the same listing. Creates lock on the change itself.
func lockKey(ch *types.Change) string {
	if ch.ExistingListingID != nil && *ch.ExistingListingID != uuid.Nil {
		return "listing:" + ch.ExistingListingID.String()
	}
	return "change:" + ch.ID.String()
}

func dedupeIDs(in []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(in))
	out := make([]uuid.UUID, 0, len(in))
	for _, id := range in {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
