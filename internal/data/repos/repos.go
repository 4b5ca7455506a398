package repos

import (
	"github.com/leasingborsen/listing-reconciler/internal/data/repos/extraction"
	"github.com/leasingborsen/listing-reconciler/internal/data/repos/listings"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
	"gorm.io/gorm"
)

type ListingRepo = listings.ListingRepo
type OfferRepo = listings.OfferRepo
type ReferenceRepo = listings.ReferenceRepo

type SessionRepo = extraction.SessionRepo
type RecordRepo = extraction.RecordRepo
type ChangeRepo = extraction.ChangeRepo
type ChangeFilter = extraction.ChangeFilter
type TypeStatusCount = extraction.TypeStatusCount

func NewListingRepo(db *gorm.DB, baseLog *logger.Logger) ListingRepo {
	return listings.NewListingRepo(db, baseLog)
}
func NewOfferRepo(db *gorm.DB, baseLog *logger.Logger) OfferRepo {
	return listings.NewOfferRepo(db, baseLog)
}
func NewReferenceRepo(db *gorm.DB, baseLog *logger.Logger) ReferenceRepo {
	return listings.NewReferenceRepo(db, baseLog)
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return extraction.NewSessionRepo(db, baseLog)
}
func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	return extraction.NewRecordRepo(db, baseLog)
}
func NewChangeRepo(db *gorm.DB, baseLog *logger.Logger) ChangeRepo {
	return extraction.NewChangeRepo(db, baseLog)
}
