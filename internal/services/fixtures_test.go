package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/leasingborsen/listing-reconciler/internal/data/aggregates"
	aggtestutil "github.com/leasingborsen/listing-reconciler/internal/data/aggregates/testutil"
	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	"github.com/leasingborsen/listing-reconciler/internal/data/repos/testutil"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/reconcile"
)

type svcFixture struct {
	ctx      context.Context
	db       *gorm.DB
	metrics  *observability.Metrics
	hooks    *aggtestutil.HooksRecorder
	sellerID uuid.UUID

	sessions repos.SessionRepo
	records  repos.RecordRepo
	changes  repos.ChangeRepo
	listings repos.ListingRepo
	offers   repos.OfferRepo
	applyAgg domainagg.ListingApplyAggregate

	extraction ExtractionService
	review     ReviewService
	apply      ApplyService
}

func newSvcFixture(t *testing.T) *svcFixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.NewMetrics()

	sessions := repos.NewSessionRepo(db, log)
	records := repos.NewRecordRepo(db, log)
	changes := repos.NewChangeRepo(db, log)
	listings := repos.NewListingRepo(db, log)
	offers := repos.NewOfferRepo(db, log)
	references := repos.NewReferenceRepo(db, log)

	hooks := &aggtestutil.HooksRecorder{}
	base := aggregates.BaseDeps{DB: db, Log: log, Hooks: aggregates.FanOut(aggregates.NewObservabilityHooks(metrics), hooks)}
	classify := aggregates.NewClassificationAggregate(aggregates.ClassificationAggregateDeps{
		Base: base, Sessions: sessions, Records: records, Changes: changes,
	})
	review := aggregates.NewChangeReviewAggregate(aggregates.ChangeReviewAggregateDeps{Base: base, Changes: changes})
	apply := aggregates.NewListingApplyAggregate(aggregates.ListingApplyAggregateDeps{
		Base: base, Sessions: sessions, Changes: changes, Listings: listings, Offers: offers, References: references,
	})

	testutil.SeedReference(t, ctx, db, "Toyota", "Yaris", "Aygo X")
	testutil.SeedVocabulary(t, ctx, db)

	return &svcFixture{
		ctx:        ctx,
		db:         db,
		metrics:    metrics,
		hooks:      hooks,
		sellerID:   uuid.New(),
		sessions:   sessions,
		records:    records,
		changes:    changes,
		listings:   listings,
		offers:     offers,
		applyAgg:   apply,
		extraction: NewExtractionService(db, log, metrics, sessions, records, changes, listings, references, classify, reconcile.DefaultMatchConfig()),
		review:     NewReviewService(log, sessions, changes, review),
		apply:      NewApplyService(log, metrics, sessions, changes, apply, NewKeyedMutex(), ApplyConfig{Concurrency: 2}),
	}
}

func (f *svcFixture) newSession(t *testing.T, vehicles ...types.ExtractedVehicle) *types.ExtractionSession {
	t.Helper()
	sess, err := f.extraction.CreateSession(f.ctx, f.sellerID, "test")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(vehicles) > 0 {
		if _, err := f.extraction.StageRecords(f.ctx, sess.ID, vehicles); err != nil {
			t.Fatalf("stage records: %v", err)
		}
	}
	return sess
}

func (f *svcFixture) changesOf(t *testing.T, sessionID uuid.UUID, changeType string) []*types.Change {
	t.Helper()
	out, err := f.changes.ListBySession(dbctx.Context{Ctx: f.ctx}, sessionID, repos.ChangeFilter{ChangeType: changeType})
	if err != nil {
		t.Fatalf("list changes: %v", err)
	}
	return out
}

func (f *svcFixture) sellerListings(t *testing.T) []*types.Listing {
	t.Helper()
	out, err := f.listings.ListBySeller(dbctx.Context{Ctx: f.ctx}, f.sellerID)
	if err != nil {
		t.Fatalf("list listings: %v", err)
	}
	return out
}

func yarisActive(monthly float64) types.ExtractedVehicle {
	return types.ExtractedVehicle{
		Make:    "Toyota",
		Model:   "Yaris",
		Variant: "Active",
		Offers:  []types.ExtractedOffer{{MonthlyPrice: monthly, PeriodMonths: 36, MileagePerYear: 10000}},
	}
}

func (f *svcFixture) seedYaris(t *testing.T, variant string, monthly float64) *types.Listing {
	t.Helper()
	return testutil.SeedListing(t, f.ctx, f.db, testutil.ListingSeed{
		SellerID: f.sellerID,
		Make:     "Toyota",
		Model:    "Yaris",
		Variant:  variant,
		Offers:   []types.Offer{{MonthlyPrice: monthly, PeriodMonths: 36, MileagePerYear: 10000}},
	})
}
