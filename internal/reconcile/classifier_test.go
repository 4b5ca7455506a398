package reconcile

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
)

func yaris2799() types.ExtractedVehicle {
	return types.ExtractedVehicle{
		Make:    "Toyota",
		Model:   "Yaris",
		Variant: "Active",
		Offers:  []types.ExtractedOffer{{MonthlyPrice: 2799, PeriodMonths: 36, MileagePerYear: 10000}},
	}
}

func TestClassifyCreateWhenNoListing(t *testing.T) {
	p := NewPass(NewMatcher(DefaultMatchConfig(), catalogOf("Toyota", "Yaris")), nil, nil)
	c, err := p.Classify(yaris2799())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.ChangeType != types.ChangeTypeCreate {
		t.Fatalf("change type: want=create got=%s", c.ChangeType)
	}
	if c.Match.Method != types.MatchMethodUnmatched {
		t.Fatalf("method: want=unmatched got=%s", c.Match.Method)
	}
}

func TestClassifyUpdateCarriesOffersDiff(t *testing.T) {
	existing := &types.Listing{
		ID: uuid.New(), Make: "Toyota", Model: "Yaris", Variant: "Active", MonthlyPrice: 2899,
		Offers: []types.Offer{{MonthlyPrice: 2899, PeriodMonths: 36, MileagePerYear: 10000}},
	}
	p := NewPass(NewMatcher(DefaultMatchConfig(), catalogOf("Toyota", "Yaris")), []*types.Listing{existing}, nil)
	c, err := p.Classify(yaris2799())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.ChangeType != types.ChangeTypeUpdate {
		t.Fatalf("change type: want=update got=%s", c.ChangeType)
	}
	if _, ok := c.Diff[FieldOffers]; !ok {
		t.Fatalf("diff must contain offers: %v", c.Diff.Fields())
	}
	if len(p.Unclaimed()) != 0 {
		t.Fatalf("matched listing must be claimed")
	}
}

func TestClassifyUnchanged(t *testing.T) {
	existing := &types.Listing{
		ID: uuid.New(), Make: "Toyota", Model: "Yaris", Variant: "Active", MonthlyPrice: 2799,
		Offers: []types.Offer{{MonthlyPrice: 2799, PeriodMonths: 36, MileagePerYear: 10000}},
	}
	p := NewPass(NewMatcher(DefaultMatchConfig(), nil), []*types.Listing{existing}, nil)
	c, err := p.Classify(yaris2799())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.ChangeType != types.ChangeTypeUnchanged || !c.Diff.Empty() {
		t.Fatalf("want unchanged with empty diff, got=%s %v", c.ChangeType, c.Diff)
	}
}

func TestClassifyMissingModel(t *testing.T) {
	p := NewPass(NewMatcher(DefaultMatchConfig(), catalogOf("Toyota", "Aygo X")), nil, nil)
	c, err := p.Classify(yaris2799())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if c.ChangeType != types.ChangeTypeMissingModel || c.Match.Method != types.MatchMethodModelNotFound {
		t.Fatalf("want missing_model/model_not_found got=%s/%s", c.ChangeType, c.Match.Method)
	}
}

func TestPassDeletesUnclaimedListings(t *testing.T) {
	kept := &types.Listing{ID: uuid.New(), Make: "Toyota", Model: "Yaris", Variant: "Active", UpdatedAt: time.Now()}
	gone := &types.Listing{ID: uuid.New(), Make: "Toyota", Model: "Corolla", Variant: "Style", UpdatedAt: time.Now()}
	p := NewPass(NewMatcher(DefaultMatchConfig(), nil), []*types.Listing{kept, gone}, nil)
	if _, err := p.Classify(yaris2799()); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	un := p.Unclaimed()
	if len(un) != 1 || un[0].ID != gone.ID {
		t.Fatalf("unclaimed: want=[%s] got=%v", gone.ID, un)
	}
	d := DeleteDraft(un[0])
	if d.ChangeType != types.ChangeTypeDelete || d.ExistingListingID == nil || *d.ExistingListingID != gone.ID {
		t.Fatalf("delete draft: %+v", d)
	}
	if d.DedupeKey != types.DeleteDedupeKey(gone.ID) {
		t.Fatalf("dedupe key: want=%s got=%s", types.DeleteDedupeKey(gone.ID), d.DedupeKey)
	}
}

func TestPassClaimsEachListingOnce(t *testing.T) {
	only := &types.Listing{ID: uuid.New(), Make: "Toyota", Model: "Yaris", Variant: "Active"}
	p := NewPass(NewMatcher(DefaultMatchConfig(), nil), []*types.Listing{only}, nil)
	first, err := p.Classify(yaris2799())
	if err != nil || !first.Match.Matched() {
		t.Fatalf("first record should match: err=%v match=%+v", err, first.Match)
	}
	second, err := p.Classify(yaris2799())
	if err != nil {
		t.Fatalf("second Classify: %v", err)
	}
	if second.ChangeType != types.ChangeTypeCreate {
		t.Fatalf("listing already claimed; want create got=%s", second.ChangeType)
	}
}

func TestPassHonoursEarlierClaims(t *testing.T) {
	only := &types.Listing{ID: uuid.New(), Make: "Toyota", Model: "Yaris", Variant: "Active"}
	p := NewPass(NewMatcher(DefaultMatchConfig(), nil), []*types.Listing{only}, []uuid.UUID{only.ID})
	if len(p.Unclaimed()) != 0 {
		t.Fatalf("pre-claimed listing must not be a delete candidate")
	}
}

func TestPassValidationErrorDoesNotStopBatch(t *testing.T) {
	p := NewPass(NewMatcher(DefaultMatchConfig(), nil), nil, nil)
	bad := yaris2799()
	bad.Offers = nil
	_, err := p.Classify(bad)
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation error got=%v", err)
	}
	if _, err := p.Classify(yaris2799()); err != nil {
		t.Fatalf("next record must still classify: %v", err)
	}
}

func TestClassifyRejectsForeignListing(t *testing.T) {
	id := uuid.New()
	_, err := Classify(yaris2799(), MatchResult{ListingID: &id, Method: types.MatchMethodExact, Confidence: 1}, nil)
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("want invariant violation got=%v", err)
	}
}

func TestRecordDraftSnapshotRoundTrip(t *testing.T) {
	v := types.ExtractedVehicle{
		Make: "Toyota", Model: "Aygo X", Variant: "Pulse", Horsepower: 72, Transmission: "Automatic",
		FuelType: "Benzin", BodyType: "Hatchback", MonthlyPrice: 2599, EngineSpecification: "1.0 VVT-i 72 hk",
		Offers: []types.ExtractedOffer{
			{MonthlyPrice: 2599, PeriodMonths: 36, MileagePerYear: 10000, FirstPayment: 4999, TotalPrice: 98563},
			{MonthlyPrice: 2799, PeriodMonths: 24, MileagePerYear: 15000},
		},
	}
	d, err := RecordDraft(uuid.New(), v, Classification{ChangeType: types.ChangeTypeCreate, Match: MatchResult{Method: types.MatchMethodUnmatched}})
	if err != nil {
		t.Fatalf("RecordDraft: %v", err)
	}
	var back types.ExtractedVehicle
	if err := json.Unmarshal(d.ExtractedData, &back); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !reflect.DeepEqual(v, back) {
		t.Fatalf("snapshot round trip:\nwant=%+v\ngot=%+v", v, back)
	}
	if d.FieldDiff != nil {
		t.Fatalf("create draft must not carry a diff")
	}
}
