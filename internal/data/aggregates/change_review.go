package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
)

type ChangeReviewAggregateDeps struct {
	Base BaseDeps

	Changes repos.ChangeRepo
}

type changeReviewAggregate struct {
	deps ChangeReviewAggregateDeps
}

func NewChangeReviewAggregate(deps ChangeReviewAggregateDeps) domainagg.ChangeReviewAggregate {
	deps.Base = deps.Base.scopedTo(domainagg.ChangeReviewAggregateContract)
	return &changeReviewAggregate{deps: deps}
}

func (a *changeReviewAggregate) Contract() domainagg.Contract {
	return domainagg.ChangeReviewAggregateContract
}

// reviewTransitions lists the moves a reviewer may make. approved -> applied is not one of them.
var reviewTransitions = map[string][]string{
	types.ChangeStatusPending:  {types.ChangeStatusApproved, types.ChangeStatusRejected},
	types.ChangeStatusRejected: {types.ChangeStatusPending},
}

func reviewAllowed(from, to string) bool {
	for _, s := range reviewTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (a *changeReviewAggregate) TransitionChange(ctx context.Context, in domainagg.TransitionChangeInput) (domainagg.TransitionChangeResult, error) {
	const op = "Extraction.ChangeReview.Transition"
	var out domainagg.TransitionChangeResult
	if in.SessionID == uuid.Nil || in.ChangeID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id or change_id", nil)
	}
	from := strings.TrimSpace(in.FromStatus)
	to := strings.TrimSpace(in.ToStatus)
	if !reviewAllowed(from, to) {
		return out, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("transition %s -> %s is not a review action", from, to), nil)
	}
	if a.deps.Changes == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "change review aggregate repos not configured", nil)
	}
	at := nowOr(in.TransitionAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ch, err := a.deps.Changes.GetByIDForUpdate(dbc, in.SessionID, in.ChangeID)
		if err != nil {
			return err
		}
		if ch == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, "change not found: "+in.ChangeID.String(), nil)
		}
		if to == types.ChangeStatusApproved && !types.Approvable(ch.ChangeType) {
			return InvariantError(fmt.Sprintf("%s changes cannot be approved", ch.ChangeType))
		}
		if ch.ChangeStatus != from {
			return domainagg.ConcurrentModification(op, "change "+ch.ID.String(), from)
		}

		updates := map[string]any{
			"change_status": to,
			"updated_at":    at,
		}
		if to == types.ChangeStatusPending {
			updates["reviewed_at"] = nil
			updates["reviewed_by"] = nil
		} else {
			updates["reviewed_at"] = at
			updates["reviewed_by"] = reviewerOrNil(in.Reviewer)
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatusColumn(dbc, "extraction_change", "change_status", ch.ID, []string{from}, updates)
		if err != nil {
			return err
		}
		if !ok {
			return domainagg.ConcurrentModification(op, "change "+ch.ID.String(), from)
		}
		out = domainagg.TransitionChangeResult{
			ChangeID:     ch.ID,
			ChangeType:   ch.ChangeType,
			Status:       to,
			TransitionAt: at,
		}
		return nil
	})
	return out, err
}

func (a *changeReviewAggregate) ApproveAllOfType(ctx context.Context, in domainagg.ApproveAllOfTypeInput) (domainagg.ApproveAllOfTypeResult, error) {
	const op = "Extraction.ChangeReview.ApproveAllOfType"
	var out domainagg.ApproveAllOfTypeResult
	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	changeType := strings.TrimSpace(in.ChangeType)
	if !types.Approvable(changeType) {
		return out, domainagg.NewError(domainagg.CodeValidation, op,
			fmt.Sprintf("change type %q cannot be bulk approved", changeType), nil)
	}
	if a.deps.Changes == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "change review aggregate repos not configured", nil)
	}
	at := nowOr(in.ApprovedAt)

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		ids, err := a.deps.Changes.ListIDsByTypeStatus(dbc, in.SessionID, changeType, types.ChangeStatusPending)
		if err != nil {
			return err
		}
		out = domainagg.ApproveAllOfTypeResult{
			SessionID:   in.SessionID,
			ChangeType:  changeType,
			ApprovedIDs: ids,
			ApprovedAt:  at,
		}
		if len(ids) == 0 {
			return nil
		}
		n, err := a.deps.Changes.UpdateStatusIn(dbc, in.SessionID, ids, types.ChangeStatusPending, map[string]any{
			"change_status": types.ChangeStatusApproved,
			"reviewed_at":   at,
			"reviewed_by":   reviewerOrNil(in.Reviewer),
		})
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return ConflictError(fmt.Sprintf("bulk approval matched %d of %d pending %s changes", n, len(ids), changeType))
		}
		return nil
	})
	if err != nil {
		out.ApprovedIDs = nil
	}
	return out, err
}

func reviewerOrNil(reviewer string) any {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return nil
	}
	return reviewer
}
