package listings

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type ListingRepo interface {
	Create(dbc dbctx.Context, listing *types.Listing) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Listing, error)
	GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Listing, error)
	ListBySeller(dbc dbctx.Context, sellerID uuid.UUID) ([]*types.Listing, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (int64, error)
	Delete(dbc dbctx.Context, id uuid.UUID) (int64, error)
}

type listingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewListingRepo(db *gorm.DB, baseLog *logger.Logger) ListingRepo {
	return &listingRepo{
		db:  db,
		log: baseLog.With("repo", "ListingRepo"),
	}
}

// Create inserts the listing row only; offers go through OfferRepo.
func (r *listingRepo) Create(dbc dbctx.Context, listing *types.Listing) error {
	if listing == nil {
		return nil
	}
	return dbc.DB(r.db).Omit(clause.Associations).Create(listing).Error
}

// GetByID returns nil, nil when absent. Offers are preloaded in a stable order.
func (r *listingRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Listing, error) {
	return r.get(dbc.DB(r.db), id)
}

// GetByIDForUpdate takes a row lock on Postgres; other drivers ignore the clause.
func (r *listingRepo) GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.Listing, error) {
	return r.get(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *listingRepo) get(q *gorm.DB, id uuid.UUID) (*types.Listing, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Listing
	err := q.Preload("Offers", func(db *gorm.DB) *gorm.DB {
		return db.Order("period_months ASC, mileage_per_year ASC, monthly_price ASC")
	}).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *listingRepo) ListBySeller(dbc dbctx.Context, sellerID uuid.UUID) ([]*types.Listing, error) {
	var out []*types.Listing
	if sellerID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Preload("Offers", func(db *gorm.DB) *gorm.DB {
			return db.Order("period_months ASC, mileage_per_year ASC, monthly_price ASC")
		}).
		Where("seller_id = ?", sellerID).
		Order("updated_at DESC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *listingRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (int64, error) {
	if id == uuid.Nil || len(updates) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).Model(&types.Listing{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *listingRepo) Delete(dbc dbctx.Context, id uuid.UUID) (int64, error) {
	if id == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&types.Listing{})
	return res.RowsAffected, res.Error
}
