package aggregates

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	"github.com/leasingborsen/listing-reconciler/internal/data/repos/testutil"
	types "github.com/leasingborsen/listing-reconciler/internal/domain"
)

type aggFixture struct {
	ctx  context.Context
	db   *gorm.DB
	base BaseDeps

	sessions   repos.SessionRepo
	records    repos.RecordRepo
	changes    repos.ChangeRepo
	listings   repos.ListingRepo
	offers     repos.OfferRepo
	references repos.ReferenceRepo
}

func newAggFixture(t *testing.T) *aggFixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return &aggFixture{
		ctx:        context.Background(),
		db:         db,
		base:       BaseDeps{DB: db, Log: log},
		sessions:   repos.NewSessionRepo(db, log),
		records:    repos.NewRecordRepo(db, log),
		changes:    repos.NewChangeRepo(db, log),
		listings:   repos.NewListingRepo(db, log),
		offers:     repos.NewOfferRepo(db, log),
		references: repos.NewReferenceRepo(db, log),
	}
}

func (f *aggFixture) classification() *classificationAggregate {
	return NewClassificationAggregate(ClassificationAggregateDeps{
		Base:     f.base,
		Sessions: f.sessions,
		Records:  f.records,
		Changes:  f.changes,
	}).(*classificationAggregate)
}

func (f *aggFixture) review() *changeReviewAggregate {
	return NewChangeReviewAggregate(ChangeReviewAggregateDeps{Base: f.base, Changes: f.changes}).(*changeReviewAggregate)
}

func (f *aggFixture) apply() *listingApplyAggregate {
	return NewListingApplyAggregate(ListingApplyAggregateDeps{
		Base:       f.base,
		Sessions:   f.sessions,
		Changes:    f.changes,
		Listings:   f.listings,
		Offers:     f.offers,
		References: f.references,
	}).(*listingApplyAggregate)
}

func (f *aggFixture) reload(t *testing.T, c *types.Change) *types.Change {
	t.Helper()
	var out types.Change
	if err := f.db.First(&out, "id = ?", c.ID).Error; err != nil {
		t.Fatalf("reload change: %v", err)
	}
	return &out
}

func (f *aggFixture) session(t *testing.T, id any) *types.ExtractionSession {
	t.Helper()
	var out types.ExtractionSession
	if err := f.db.First(&out, "id = ?", id).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	return &out
}

func aygo() types.ExtractedVehicle {
	return types.ExtractedVehicle{
		Make:         "Toyota",
		Model:        "Aygo X",
		Variant:      "Active",
		Horsepower:   72,
		Transmission: "Automatic",
		FuelType:     "Benzin",
		BodyType:     "Hatchback",
		Offers: []types.ExtractedOffer{
			{MonthlyPrice: 2899, PeriodMonths: 36, MileagePerYear: 15000, FirstPayment: 4999},
			{MonthlyPrice: 2699, PeriodMonths: 48, MileagePerYear: 15000, FirstPayment: 4999},
		},
	}
}
