package aggregates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos/testutil"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
)

func TestRequireStatusAllowed(t *testing.T) {
	if err := RequireStatusAllowed("pending", "pending", "failed"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireStatusAllowed("Processing", "processing"); err != nil {
		t.Fatalf("case-insensitive match: %v", err)
	}
	err := MapError("op", RequireStatusAllowed("completed", "pending", "failed"))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("want conflict got %v", err)
	}
	if err := MapError("op", RequireStatusAllowed("pending")); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("empty allowed list: want validation got %v", err)
	}
}

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := MapError("op", RequireCASSuccess(false, "stale")); !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("want conflict got %v", err)
	}
}

func TestCASGuard_UpdateByStatusColumn(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	sess := testutil.SeedSession(t, ctx, db, uuid.New(), types.SessionStatusCompleted)
	ch := testutil.SeedChange(t, ctx, db, &types.Change{SessionID: sess.ID, ChangeType: types.ChangeTypeCreate})
	guard := NewCASGuard(db)
	dbc := dbctx.Context{Ctx: ctx}

	ok, err := guard.UpdateByStatusColumn(dbc, "extraction_change", "change_status", ch.ID, []string{"pending"}, map[string]any{
		"change_status": "approved",
		"updated_at":    time.Now().UTC(),
	})
	if err != nil || !ok {
		t.Fatalf("first CAS: want ok got ok=%v err=%v", ok, err)
	}
	ok, err = guard.UpdateByStatusColumn(dbc, "extraction_change", "change_status", ch.ID, []string{"pending"}, map[string]any{
		"change_status": "rejected",
	})
	if err != nil || ok {
		t.Fatalf("second CAS: want lost got ok=%v err=%v", ok, err)
	}
	if _, err := guard.UpdateByStatusColumn(dbc, "extraction_change", "change_status", uuid.Nil, []string{"pending"}, nil); err == nil {
		t.Fatalf("nil id: want validation error")
	}
}

func TestCASGuard_RefusesTablesOutsideContract(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	sess := testutil.SeedSession(t, ctx, db, uuid.New(), types.SessionStatusCompleted)
	guard := NewCASGuard(db).For(domainagg.ChangeReviewAggregateContract)

	_, err := guard.UpdateByStatus(dbctx.Context{Ctx: ctx}, "extraction_session", sess.ID, []string{types.SessionStatusCompleted}, map[string]any{
		"status": types.SessionStatusFailed,
	})
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("out-of-contract table: want internal got %v", err)
	}

	var got types.ExtractionSession
	if err := db.First(&got, "id = ?", sess.ID).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if got.Status != types.SessionStatusCompleted {
		t.Fatalf("session status: want=%s got=%s", types.SessionStatusCompleted, got.Status)
	}
}

func TestContracts_CoverWrittenTables(t *testing.T) {
	cases := []struct {
		contract domainagg.Contract
		tables   []string
	}{
		{domainagg.ClassificationAggregateContract, []string{"extraction_session", "extracted_record", "extraction_change"}},
		{domainagg.ChangeReviewAggregateContract, []string{"extraction_change"}},
		{domainagg.ListingApplyAggregateContract, []string{"listing", "listing_offer", "extraction_change", "extraction_session"}},
	}
	for _, tc := range cases {
		for _, table := range tc.tables {
			if !tc.contract.AllowsWrite(table) {
				t.Fatalf("%s: want write access to %s", tc.contract.Name, table)
			}
		}
	}
	if domainagg.ChangeReviewAggregateContract.AllowsWrite("listing") {
		t.Fatalf("review contract must not write listings")
	}
}
