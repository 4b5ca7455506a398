package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
)

type ListingSeed struct {
	SellerID     uuid.UUID
	Make         string
	Model        string
	Variant      string
	Horsepower   int
	Transmission string
	FuelType     string
	BodyType     string
	Offers       []types.Offer
}

// SeedReference inserts a make with its models and returns them keyed by model name.
func SeedReference(tb testing.TB, ctx context.Context, tx *gorm.DB, makeName string, models ...string) (*types.Make, map[string]*types.Model) {
	tb.Helper()
	mk := &types.Make{Name: makeName}
	if err := tx.WithContext(ctx).Create(mk).Error; err != nil {
		tb.Fatalf("seed make: %v", err)
	}
	out := make(map[string]*types.Model, len(models))
	for _, name := range models {
		md := &types.Model{MakeID: mk.ID, Name: name}
		if err := tx.WithContext(ctx).Create(md).Error; err != nil {
			tb.Fatalf("seed model: %v", err)
		}
		out[name] = md
	}
	return mk, out
}

func SeedVocabulary(tb testing.TB, ctx context.Context, tx *gorm.DB) {
	tb.Helper()
	rows := []any{
		&types.FuelType{Name: "Benzin"},
		&types.FuelType{Name: "Diesel"},
		&types.FuelType{Name: "El"},
		&types.FuelType{Name: "Hybrid"},
		&types.BodyType{Name: "Hatchback"},
		&types.BodyType{Name: "SUV"},
		&types.BodyType{Name: "Stationcar"},
		&types.Transmission{Name: "Automatic"},
		&types.Transmission{Name: "Manual"},
	}
	for _, row := range rows {
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			tb.Fatalf("seed vocabulary: %v", err)
		}
	}
}

// SeedListing inserts a listing with offers; make/model IDs are resolved when present.
func SeedListing(tb testing.TB, ctx context.Context, tx *gorm.DB, s ListingSeed) *types.Listing {
	tb.Helper()
	l := &types.Listing{
		SellerID:     s.SellerID,
		Make:         s.Make,
		Model:        s.Model,
		Variant:      s.Variant,
		Horsepower:   s.Horsepower,
		Transmission: s.Transmission,
		FuelType:     s.FuelType,
		BodyType:     s.BodyType,
	}
	var mk types.Make
	if err := tx.WithContext(ctx).Where("name = ?", s.Make).Limit(1).Find(&mk).Error; err == nil && mk.ID != uuid.Nil {
		l.MakeID = mk.ID
		var md types.Model
		if err := tx.WithContext(ctx).Where("make_id = ? AND name = ?", mk.ID, s.Model).Limit(1).Find(&md).Error; err == nil {
			l.ModelID = md.ID
		}
	}
	if l.MakeID == uuid.Nil {
		l.MakeID = uuid.New()
	}
	if l.ModelID == uuid.Nil {
		l.ModelID = uuid.New()
	}
	l.MonthlyPrice = types.CheapestMonthly(s.Offers)
	if err := tx.WithContext(ctx).Omit("Offers").Create(l).Error; err != nil {
		tb.Fatalf("seed listing: %v", err)
	}
	for i := range s.Offers {
		o := s.Offers[i]
		o.ID = uuid.Nil
		o.ListingID = l.ID
		if err := tx.WithContext(ctx).Create(&o).Error; err != nil {
			tb.Fatalf("seed offer: %v", err)
		}
		l.Offers = append(l.Offers, o)
	}
	return l
}

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, sellerID uuid.UUID, status string) *types.ExtractionSession {
	tb.Helper()
	s := &types.ExtractionSession{SellerID: sellerID, Status: status}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}

func SeedRecords(tb testing.TB, ctx context.Context, tx *gorm.DB, sessionID uuid.UUID, vehicles ...types.ExtractedVehicle) []*types.ExtractedRecord {
	tb.Helper()
	out := make([]*types.ExtractedRecord, 0, len(vehicles))
	for i, v := range vehicles {
		raw, err := json.Marshal(v)
		if err != nil {
			tb.Fatalf("marshal vehicle: %v", err)
		}
		rec := &types.ExtractedRecord{SessionID: sessionID, Seq: i + 1, Payload: datatypes.JSON(raw)}
		if err := tx.WithContext(ctx).Create(rec).Error; err != nil {
			tb.Fatalf("seed record: %v", err)
		}
		out = append(out, rec)
	}
	return out
}

// SeedChange inserts a change directly, bypassing classification.
func SeedChange(tb testing.TB, ctx context.Context, tx *gorm.DB, c *types.Change) *types.Change {
	tb.Helper()
	if c.ChangeStatus == "" {
		c.ChangeStatus = types.ChangeStatusPending
	}
	if c.DedupeKey == "" {
		c.DedupeKey = "seed:" + uuid.NewString()
	}
	if c.MatchMethod == "" {
		c.MatchMethod = types.MatchMethodManual
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed change: %v", err)
	}
	return c
}

func VehicleJSON(tb testing.TB, v *types.ExtractedVehicle) datatypes.JSON {
	tb.Helper()
	if v == nil {
		return datatypes.JSON("null")
	}
	raw, err := json.Marshal(v)
	if err != nil {
		tb.Fatalf("marshal vehicle: %v", err)
	}
	return datatypes.JSON(raw)
}
