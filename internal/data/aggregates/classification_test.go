package aggregates

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	"github.com/leasingborsen/listing-reconciler/internal/data/repos/testutil"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
)

func createDraft(recordID uuid.UUID, v types.ExtractedVehicle) *domainagg.ChangeDraft {
	raw, _ := json.Marshal(v)
	return &domainagg.ChangeDraft{
		DedupeKey:     types.RecordDedupeKey(recordID),
		ChangeType:    types.ChangeTypeCreate,
		ExtractedData: raw,
		MatchMethod:   types.MatchMethodUnmatched,
	}
}

func TestClassification_BeginOnlyFromPendingOrFailed(t *testing.T) {
	f := newAggFixture(t)
	agg := f.classification()
	sellerID := uuid.New()

	pending := testutil.SeedSession(t, f.ctx, f.db, sellerID, types.SessionStatusPending)
	res, err := agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: pending.ID})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if res.PreviousStatus != types.SessionStatusPending || res.Status != types.SessionStatusProcessing || res.SellerID != sellerID {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := f.session(t, pending.ID).Status; got != types.SessionStatusProcessing {
		t.Fatalf("status: want=processing got=%s", got)
	}

	_, err = agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: pending.ID})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("second begin: want conflict got %v", err)
	}

	completed := testutil.SeedSession(t, f.ctx, f.db, sellerID, types.SessionStatusCompleted)
	_, err = agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: completed.ID})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("completed begin: want conflict got %v", err)
	}

	failed := testutil.SeedSession(t, f.ctx, f.db, sellerID, types.SessionStatusFailed)
	if _, err := agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: failed.ID}); err != nil {
		t.Fatalf("failed session should restart: %v", err)
	}

	_, err = agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: uuid.New()})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown session: want not_found got %v", err)
	}
}

func TestClassification_RecordOutcomePairsChangeWithRecord(t *testing.T) {
	f := newAggFixture(t)
	agg := f.classification()
	sess := testutil.SeedSession(t, f.ctx, f.db, uuid.New(), types.SessionStatusPending)
	recs := testutil.SeedRecords(t, f.ctx, f.db, sess.ID, aygo(), aygo())
	if _, err := agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: sess.ID}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	res, err := agg.RecordOutcome(f.ctx, domainagg.RecordOutcomeInput{
		SessionID: sess.ID,
		RecordID:  recs[0].ID,
		Change:    createDraft(recs[0].ID, aygo()),
	})
	if err != nil {
		t.Fatalf("record outcome: %v", err)
	}
	if !res.Inserted || res.ChangeID == nil {
		t.Fatalf("want inserted change, got %+v", res)
	}

	// Re-recording the same record loses the classified_at CAS and rolls back.
	_, err = agg.RecordOutcome(f.ctx, domainagg.RecordOutcomeInput{
		SessionID: sess.ID,
		RecordID:  recs[0].ID,
		Change:    createDraft(recs[0].ID, aygo()),
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("duplicate outcome: want conflict got %v", err)
	}

	dbc := dbctx.Context{Ctx: f.ctx}
	rows, err := f.changes.ListBySession(dbc, sess.ID, repos.ChangeFilter{})
	if err != nil {
		t.Fatalf("list changes: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("changes: want=1 got=%d", len(rows))
	}
	left, err := f.records.ListUnclassified(dbc, sess.ID)
	if err != nil {
		t.Fatalf("list unclassified: %v", err)
	}
	if len(left) != 1 || left[0].ID != recs[1].ID {
		t.Fatalf("unclassified: want only record 2, got %d rows", len(left))
	}
}

func TestClassification_RecordOutcomeFailureKeepsRecordForRetry(t *testing.T) {
	f := newAggFixture(t)
	agg := f.classification()
	sess := testutil.SeedSession(t, f.ctx, f.db, uuid.New(), types.SessionStatusPending)
	rec := testutil.SeedRecords(t, f.ctx, f.db, sess.ID, types.ExtractedVehicle{Make: "Toyota"})[0]
	if _, err := agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: sess.ID}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if _, err := agg.RecordOutcome(f.ctx, domainagg.RecordOutcomeInput{
		SessionID:     sess.ID,
		RecordID:      rec.ID,
		ClassifyError: "missing model",
	}); err != nil {
		t.Fatalf("record failure: %v", err)
	}
	dbc := dbctx.Context{Ctx: f.ctx}
	left, err := f.records.ListUnclassified(dbc, sess.ID)
	if err != nil {
		t.Fatalf("list unclassified: %v", err)
	}
	if len(left) != 1 || left[0].ClassifyError != "missing model" {
		t.Fatalf("want failed record kept with error, got %+v", left)
	}
	total, failed, err := f.records.CountBySession(dbc, sess.ID)
	if err != nil || total != 1 || failed != 1 {
		t.Fatalf("counts: want=1/1 got=%d/%d err=%v", total, failed, err)
	}
}

func TestClassification_RecordOutcomeRejectsAmbiguousInput(t *testing.T) {
	f := newAggFixture(t)
	agg := f.classification()
	id := uuid.New()
	_, err := agg.RecordOutcome(f.ctx, domainagg.RecordOutcomeInput{SessionID: id, RecordID: id})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("neither change nor error: want validation got %v", err)
	}
	_, err = agg.RecordOutcome(f.ctx, domainagg.RecordOutcomeInput{
		SessionID: id, RecordID: id, Change: createDraft(id, aygo()), ClassifyError: "x",
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("both change and error: want validation got %v", err)
	}
}

func TestClassification_RecordOutcomeRequiresProcessingSession(t *testing.T) {
	f := newAggFixture(t)
	agg := f.classification()
	sess := testutil.SeedSession(t, f.ctx, f.db, uuid.New(), types.SessionStatusCompleted)
	rec := testutil.SeedRecords(t, f.ctx, f.db, sess.ID, aygo())[0]
	_, err := agg.RecordOutcome(f.ctx, domainagg.RecordOutcomeInput{
		SessionID: sess.ID, RecordID: rec.ID, Change: createDraft(rec.ID, aygo()),
	})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("want conflict got %v", err)
	}
}

func TestClassification_CompleteInsertsDeletesAndSettlesStatus(t *testing.T) {
	f := newAggFixture(t)
	agg := f.classification()
	sellerID := uuid.New()
	sess := testutil.SeedSession(t, f.ctx, f.db, sellerID, types.SessionStatusPending)
	gone := testutil.SeedListing(t, f.ctx, f.db, testutil.ListingSeed{
		SellerID: sellerID, Make: "Toyota", Model: "Yaris", Variant: "Style",
		Offers: []types.Offer{{MonthlyPrice: 3100, PeriodMonths: 36}},
	})
	if _, err := agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: sess.ID}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	id := gone.ID
	del := domainagg.ChangeDraft{
		DedupeKey:         types.DeleteDedupeKey(id),
		ChangeType:        types.ChangeTypeDelete,
		ExtractedData:     json.RawMessage("null"),
		ExistingListingID: &id,
		MatchMethod:       types.MatchMethodUnmatched,
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res, err := agg.CompleteClassification(f.ctx, domainagg.CompleteClassificationInput{
		SessionID:   sess.ID,
		Deletes:     []domainagg.ChangeDraft{del, del},
		CompletedAt: at,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Status != types.SessionStatusCompleted || res.DeletesInserted != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := f.session(t, sess.ID)
	if got.Status != types.SessionStatusCompleted || got.ClassifiedAt == nil || !got.ClassifiedAt.Equal(at) {
		t.Fatalf("session: want completed at %v got %s %v", at, got.Status, got.ClassifiedAt)
	}

	_, err = agg.CompleteClassification(f.ctx, domainagg.CompleteClassificationInput{SessionID: sess.ID})
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("complete twice: want conflict got %v", err)
	}
}

func TestClassification_CompleteFailedRecordsError(t *testing.T) {
	f := newAggFixture(t)
	agg := f.classification()
	sess := testutil.SeedSession(t, f.ctx, f.db, uuid.New(), types.SessionStatusPending)
	if _, err := agg.BeginClassification(f.ctx, domainagg.BeginClassificationInput{SessionID: sess.ID}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	res, err := agg.CompleteClassification(f.ctx, domainagg.CompleteClassificationInput{
		SessionID: sess.ID,
		Failed:    true,
		Error:     "2 records failed classification",
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if res.Status != types.SessionStatusFailed {
		t.Fatalf("status: want=failed got=%s", res.Status)
	}
	got := f.session(t, sess.ID)
	if got.Error != "2 records failed classification" || got.ClassifiedAt != nil {
		t.Fatalf("session: unexpected error=%q classified_at=%v", got.Error, got.ClassifiedAt)
	}

	_, err = agg.CompleteClassification(f.ctx, domainagg.CompleteClassificationInput{
		SessionID: sess.ID, Failed: true, Deletes: []domainagg.ChangeDraft{{}},
	})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("failed with deletes: want validation got %v", err)
	}
}
