package listings

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type OfferRepo interface {
	CreateMany(dbc dbctx.Context, offers []*types.Offer) error
	ListByListing(dbc dbctx.Context, listingID uuid.UUID) ([]*types.Offer, error)
	CountByListing(dbc dbctx.Context, listingID uuid.UUID) (int64, error)
	DeleteByListing(dbc dbctx.Context, listingID uuid.UUID) (int64, error)
}

type offerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOfferRepo(db *gorm.DB, baseLog *logger.Logger) OfferRepo {
	return &offerRepo{
		db:  db,
		log: baseLog.With("repo", "OfferRepo"),
	}
}

func (r *offerRepo) CreateMany(dbc dbctx.Context, offers []*types.Offer) error {
	if len(offers) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&offers).Error
}

func (r *offerRepo) ListByListing(dbc dbctx.Context, listingID uuid.UUID) ([]*types.Offer, error) {
	var out []*types.Offer
	if listingID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("listing_id = ?", listingID).
		Order("period_months ASC, mileage_per_year ASC, monthly_price ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *offerRepo) CountByListing(dbc dbctx.Context, listingID uuid.UUID) (int64, error) {
	var n int64
	err := dbc.DB(r.db).Model(&types.Offer{}).Where("listing_id = ?", listingID).Count(&n).Error
	return n, err
}

func (r *offerRepo) DeleteByListing(dbc dbctx.Context, listingID uuid.UUID) (int64, error) {
	if listingID == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("listing_id = ?", listingID).Delete(&types.Offer{})
	return res.RowsAffected, res.Error
}
