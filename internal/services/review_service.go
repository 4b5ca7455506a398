package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

// ReviewService exposes the reviewer side of the change lifecycle.
type ReviewService interface {
	ListChanges(ctx context.Context, sessionID uuid.UUID, f repos.ChangeFilter) ([]*types.Change, error)
	GetChange(ctx context.Context, sessionID, changeID uuid.UUID) (*types.Change, error)
	Approve(ctx context.Context, sessionID, changeID uuid.UUID, reviewer string) (*types.Change, error)
	Reject(ctx context.Context, sessionID, changeID uuid.UUID, reviewer string) (*types.Change, error)
	Reset(ctx context.Context, sessionID, changeID uuid.UUID, reviewer string) (*types.Change, error)
	ApproveAllOfType(ctx context.Context, sessionID uuid.UUID, changeType, reviewer string) ([]uuid.UUID, error)
}

type reviewService struct {
	log      *logger.Logger
	sessions repos.SessionRepo
	changes  repos.ChangeRepo
	review   domainagg.ChangeReviewAggregate
}

func NewReviewService(baseLog *logger.Logger, sessions repos.SessionRepo, changes repos.ChangeRepo, review domainagg.ChangeReviewAggregate) ReviewService {
	return &reviewService{
		log:      baseLog.With("service", "ReviewService"),
		sessions: sessions,
		changes:  changes,
		review:   review,
	}
}

func (s *reviewService) ListChanges(ctx context.Context, sessionID uuid.UUID, f repos.ChangeFilter) ([]*types.Change, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.requireSession(dbc, "ReviewService.ListChanges", sessionID); err != nil {
		return nil, err
	}
	out, err := s.changes.ListBySession(dbc, sessionID, f)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return out, nil
}

func (s *reviewService) GetChange(ctx context.Context, sessionID, changeID uuid.UUID) (*types.Change, error) {
	const op = "ReviewService.GetChange"
	ch, err := s.changes.GetByID(dbctx.Context{Ctx: ctx}, sessionID, changeID)
	if err != nil {
		return nil, fmt.Errorf("load change: %w", err)
	}
	if ch == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "change not found: "+changeID.String(), nil)
	}
	return ch, nil
}

func (s *reviewService) Approve(ctx context.Context, sessionID, changeID uuid.UUID, reviewer string) (*types.Change, error) {
	return s.transition(ctx, sessionID, changeID, types.ChangeStatusPending, types.ChangeStatusApproved, reviewer)
}

func (s *reviewService) Reject(ctx context.Context, sessionID, changeID uuid.UUID, reviewer string) (*types.Change, error) {
	return s.transition(ctx, sessionID, changeID, types.ChangeStatusPending, types.ChangeStatusRejected, reviewer)
}

// Reset returns a rejected change to pending.
func (s *reviewService) Reset(ctx context.Context, sessionID, changeID uuid.UUID, reviewer string) (*types.Change, error) {
	return s.transition(ctx, sessionID, changeID, types.ChangeStatusRejected, types.ChangeStatusPending, reviewer)
}

func (s *reviewService) transition(ctx context.Context, sessionID, changeID uuid.UUID, from, to, reviewer string) (*types.Change, error) {
	res, err := s.review.TransitionChange(ctx, domainagg.TransitionChangeInput{
		SessionID:  sessionID,
		ChangeID:   changeID,
		FromStatus: from,
		ToStatus:   to,
		Reviewer:   reviewer,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("change reviewed",
		"session_id", sessionID,
		"change_id", changeID,
		"change_type", res.ChangeType,
		"from", from,
		"to", to,
		"reviewer", reviewer,
	)
	return s.GetChange(ctx, sessionID, changeID)
}

func (s *reviewService) ApproveAllOfType(ctx context.Context, sessionID uuid.UUID, changeType, reviewer string) ([]uuid.UUID, error) {
	if err := s.requireSession(dbctx.Context{Ctx: ctx}, "ReviewService.ApproveAllOfType", sessionID); err != nil {
		return nil, err
	}
	res, err := s.review.ApproveAllOfType(ctx, domainagg.ApproveAllOfTypeInput{
		SessionID:  sessionID,
		ChangeType: changeType,
		Reviewer:   reviewer,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("bulk approval", "session_id", sessionID, "change_type", changeType, "approved", len(res.ApprovedIDs), "reviewer", reviewer)
	return res.ApprovedIDs, nil
}

func (s *reviewService) requireSession(dbc dbctx.Context, op string, id uuid.UUID) error {
	sess, err := s.sessions.GetByID(dbc, id)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return domainagg.NewError(domainagg.CodeNotFound, op, "session not found: "+id.String(), nil)
	}
	return nil
}
