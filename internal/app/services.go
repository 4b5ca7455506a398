package app

import (
	"gorm.io/gorm"

	"github.com/leasingborsen/listing-reconciler/internal/data/aggregates"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
	"github.com/leasingborsen/listing-reconciler/internal/observability"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
	"github.com/leasingborsen/listing-reconciler/internal/services"
)

type Aggregates struct {
	Classification domainagg.ClassificationAggregate
	Review         domainagg.ChangeReviewAggregate
	Apply          domainagg.ListingApplyAggregate
}

type Services struct {
	Aggregates Aggregates
	Extraction services.ExtractionService
	Review     services.ReviewService
	Apply      services.ApplyService
}

func wireAggregates(db *gorm.DB, log *logger.Logger, metrics *observability.Metrics, r Repos) Aggregates {
	log.Info("Wiring aggregates...")
	hooks := aggregates.FanOut(aggregates.NewObservabilityHooks(metrics), aggregates.NewLogHooks(log))
	base := aggregates.BaseDeps{DB: db, Log: log, Hooks: hooks}
	return Aggregates{
		Classification: aggregates.NewClassificationAggregate(aggregates.ClassificationAggregateDeps{
			Base:     base,
			Sessions: r.Sessions,
			Records:  r.Records,
			Changes:  r.Changes,
		}),
		Review: aggregates.NewChangeReviewAggregate(aggregates.ChangeReviewAggregateDeps{
			Base:    base,
			Changes: r.Changes,
		}),
		Apply: aggregates.NewListingApplyAggregate(aggregates.ListingApplyAggregateDeps{
			Base:       base,
			Sessions:   r.Sessions,
			Changes:    r.Changes,
			Listings:   r.Listings,
			Offers:     r.Offers,
			References: r.References,
		}),
	}
}

// listingLocker always serializes in process; Redis adds cross-replica exclusion.
func listingLocker(metrics *observability.Metrics, clients Clients) services.ListingLocker {
	named := map[string]services.ListingLocker{"local": services.NewKeyedMutex()}
	if clients.ListingLock != nil {
		named["redis"] = clients.ListingLock
	}
	return services.ChainLockers(metrics, named, "local", "redis")
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, metrics *observability.Metrics, r Repos, clients Clients) Services {
	log.Info("Wiring services...")
	aggs := wireAggregates(db, log, metrics, r)
	return Services{
		Aggregates: aggs,
		Extraction: services.NewExtractionService(
			db, log, metrics,
			r.Sessions, r.Records, r.Changes, r.Listings, r.References,
			aggs.Classification,
			cfg.Match,
		),
		Review: services.NewReviewService(log, r.Sessions, r.Changes, aggs.Review),
		Apply: services.NewApplyService(
			log, metrics,
			r.Sessions, r.Changes,
			aggs.Apply,
			listingLocker(metrics, clients),
			cfg.Apply,
		),
	}
}
