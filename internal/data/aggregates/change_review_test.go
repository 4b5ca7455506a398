package aggregates

import (
	"testing"

	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos/testutil"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
)

func TestChangeReview_TransitionLifecycle(t *testing.T) {
	f := newAggFixture(t)
	agg := f.review()
	sess := testutil.SeedSession(t, f.ctx, f.db, uuid.New(), types.SessionStatusCompleted)
	ch := testutil.SeedChange(t, f.ctx, f.db, &types.Change{SessionID: sess.ID, ChangeType: types.ChangeTypeCreate})

	steps := []struct{ from, to string }{
		{types.ChangeStatusPending, types.ChangeStatusRejected},
		{types.ChangeStatusRejected, types.ChangeStatusPending},
		{types.ChangeStatusPending, types.ChangeStatusApproved},
	}
	for _, s := range steps {
		res, err := agg.TransitionChange(f.ctx, domainagg.TransitionChangeInput{
			SessionID: sess.ID, ChangeID: ch.ID, FromStatus: s.from, ToStatus: s.to, Reviewer: "anna",
		})
		if err != nil {
			t.Fatalf("%s -> %s: %v", s.from, s.to, err)
		}
		if res.Status != s.to {
			t.Fatalf("%s -> %s: want status %s got %s", s.from, s.to, s.to, res.Status)
		}
	}
	got := f.reload(t, ch)
	if got.ChangeStatus != types.ChangeStatusApproved || got.ReviewedBy == nil || *got.ReviewedBy != "anna" || got.ReviewedAt == nil {
		t.Fatalf("unexpected stored change: status=%s reviewed_by=%v", got.ChangeStatus, got.ReviewedBy)
	}
}

func TestChangeReview_StaleFromStatusIsConflict(t *testing.T) {
	f := newAggFixture(t)
	hooks := &spyHooks{}
	f.base.Hooks = hooks
	agg := f.review()
	sess := testutil.SeedSession(t, f.ctx, f.db, uuid.New(), types.SessionStatusCompleted)
	ch := testutil.SeedChange(t, f.ctx, f.db, &types.Change{
		SessionID: sess.ID, ChangeType: types.ChangeTypeUpdate, ChangeStatus: types.ChangeStatusApproved,
	})

	_, err := agg.TransitionChange(f.ctx, domainagg.TransitionChangeInput{
		SessionID: sess.ID, ChangeID: ch.ID,
		FromStatus: types.ChangeStatusPending, ToStatus: types.ChangeStatusRejected,
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("want conflict got %v", err)
	}
	if len(hooks.Conflicts) != 1 {
		t.Fatalf("conflict hooks: want=1 got=%d", len(hooks.Conflicts))
	}
	if got := f.reload(t, ch).ChangeStatus; got != types.ChangeStatusApproved {
		t.Fatalf("status changed under conflict: %s", got)
	}
}

func TestChangeReview_RejectsNonReviewTransitions(t *testing.T) {
	f := newAggFixture(t)
	agg := f.review()
	id := uuid.New()
	for _, tc := range []struct{ from, to string }{
		{types.ChangeStatusApproved, types.ChangeStatusApplied},
		{types.ChangeStatusApplied, types.ChangeStatusPending},
		{types.ChangeStatusRejected, types.ChangeStatusApproved},
	} {
		_, err := agg.TransitionChange(f.ctx, domainagg.TransitionChangeInput{
			SessionID: id, ChangeID: id, FromStatus: tc.from, ToStatus: tc.to,
		})
		if !domainagg.IsCode(err, domainagg.CodeValidation) {
			t.Fatalf("%s -> %s: want validation got %v", tc.from, tc.to, err)
		}
	}
}

func TestChangeReview_InformationalChangesAreNotApprovable(t *testing.T) {
	f := newAggFixture(t)
	agg := f.review()
	sess := testutil.SeedSession(t, f.ctx, f.db, uuid.New(), types.SessionStatusCompleted)
	for _, ct := range []string{types.ChangeTypeUnchanged, types.ChangeTypeMissingModel} {
		ch := testutil.SeedChange(t, f.ctx, f.db, &types.Change{SessionID: sess.ID, ChangeType: ct})
		_, err := agg.TransitionChange(f.ctx, domainagg.TransitionChangeInput{
			SessionID: sess.ID, ChangeID: ch.ID,
			FromStatus: types.ChangeStatusPending, ToStatus: types.ChangeStatusApproved,
		})
		if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
			t.Fatalf("%s approve: want invariant_violation got %v", ct, err)
		}
	}
}

func TestChangeReview_UnknownChangeIsNotFound(t *testing.T) {
	f := newAggFixture(t)
	_, err := f.review().TransitionChange(f.ctx, domainagg.TransitionChangeInput{
		SessionID: uuid.New(), ChangeID: uuid.New(),
		FromStatus: types.ChangeStatusPending, ToStatus: types.ChangeStatusApproved,
	})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("want not_found got %v", err)
	}
}

func TestChangeReview_ApproveAllOfType(t *testing.T) {
	f := newAggFixture(t)
	agg := f.review()
	sess := testutil.SeedSession(t, f.ctx, f.db, uuid.New(), types.SessionStatusCompleted)
	a := testutil.SeedChange(t, f.ctx, f.db, &types.Change{SessionID: sess.ID, ChangeType: types.ChangeTypeUpdate})
	b := testutil.SeedChange(t, f.ctx, f.db, &types.Change{SessionID: sess.ID, ChangeType: types.ChangeTypeUpdate})
	rejected := testutil.SeedChange(t, f.ctx, f.db, &types.Change{
		SessionID: sess.ID, ChangeType: types.ChangeTypeUpdate, ChangeStatus: types.ChangeStatusRejected,
	})
	create := testutil.SeedChange(t, f.ctx, f.db, &types.Change{SessionID: sess.ID, ChangeType: types.ChangeTypeCreate})

	res, err := agg.ApproveAllOfType(f.ctx, domainagg.ApproveAllOfTypeInput{
		SessionID: sess.ID, ChangeType: types.ChangeTypeUpdate, Reviewer: "ops",
	})
	if err != nil {
		t.Fatalf("approve all: %v", err)
	}
	if len(res.ApprovedIDs) != 2 {
		t.Fatalf("approved: want=2 got=%d", len(res.ApprovedIDs))
	}
	for _, c := range []*types.Change{a, b} {
		if got := f.reload(t, c).ChangeStatus; got != types.ChangeStatusApproved {
			t.Fatalf("change %s: want approved got %s", c.ID, got)
		}
	}
	if got := f.reload(t, rejected).ChangeStatus; got != types.ChangeStatusRejected {
		t.Fatalf("rejected change touched: %s", got)
	}
	if got := f.reload(t, create).ChangeStatus; got != types.ChangeStatusPending {
		t.Fatalf("other type touched: %s", got)
	}

	again, err := agg.ApproveAllOfType(f.ctx, domainagg.ApproveAllOfTypeInput{
		SessionID: sess.ID, ChangeType: types.ChangeTypeUpdate,
	})
	if err != nil || len(again.ApprovedIDs) != 0 {
		t.Fatalf("second approve all: want none got %d err=%v", len(again.ApprovedIDs), err)
	}

	_, err = agg.ApproveAllOfType(f.ctx, domainagg.ApproveAllOfTypeInput{
		SessionID: sess.ID, ChangeType: types.ChangeTypeUnchanged,
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("unchanged bulk approve: want validation got %v", err)
	}
}
