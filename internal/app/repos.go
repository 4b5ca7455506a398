package app

import (
	"gorm.io/gorm"

	"github.com/leasingborsen/listing-reconciler/internal/data/repos"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type Repos struct {
	Sessions   repos.SessionRepo
	Records    repos.RecordRepo
	Changes    repos.ChangeRepo
	Listings   repos.ListingRepo
	Offers     repos.OfferRepo
	References repos.ReferenceRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Sessions:   repos.NewSessionRepo(db, log),
		Records:    repos.NewRecordRepo(db, log),
		Changes:    repos.NewChangeRepo(db, log),
		Listings:   repos.NewListingRepo(db, log),
		Offers:     repos.NewOfferRepo(db, log),
		References: repos.NewReferenceRepo(db, log),
	}
}
