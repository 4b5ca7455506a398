package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var ListingApplyAggregateContract = Contract{
	Name:   "Listings.ListingApplyAggregate",
	Writes: []string{"listing", "listing_offer", "extraction_change", "extraction_session"},
	Notes: "Owns the per-change transaction that mutates a listing with its offers and marks the " +
		"change applied; the listing is re-read and verified against the snapshot before commit.",
}

// ListingApplyAggregate commits one approved change to the listings store.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation,
// CodeReferenceResolution, CodeReferentialIntegrity, CodeRetryable, CodeInternal.
type ListingApplyAggregate interface {
	Aggregate

	// ApplyChange mutates the listing store and flips the change approved -> applied atomically.
	ApplyChange(ctx context.Context, in ApplyChangeInput) (ApplyChangeResult, error)

	// MarkSessionApplied stamps applied_at/applied_by on the session.
	MarkSessionApplied(ctx context.Context, in MarkSessionAppliedInput) (MarkSessionAppliedResult, error)
}

type ApplyChangeInput struct {
	SessionID uuid.UUID
	ChangeID  uuid.UUID
	AppliedBy string
	AppliedAt time.Time
}

type ApplyChangeResult struct {
	ChangeID   uuid.UUID
	ChangeType string
	ListingID  uuid.UUID
	// offers written for create/update, removed for delete
	OfferCount int
	AppliedAt  time.Time
}

type MarkSessionAppliedInput struct {
	SessionID uuid.UUID
	AppliedBy string
	AppliedAt time.Time
}

type MarkSessionAppliedResult struct {
	SessionID uuid.UUID
	AppliedAt time.Time
}
