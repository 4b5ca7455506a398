package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var ChangeReviewAggregateContract = Contract{
	Name:   "Extraction.ChangeReviewAggregate",
	Writes: []string{"extraction_change"},
	Notes: "Owns reviewer-driven change status transitions guarded by compare-and-set on " +
		"change_status, including the all-or-nothing bulk approval of one change type.",
}

// ChangeReviewAggregate owns pending/approved/rejected transitions.
// approved -> applied belongs to ListingApplyAggregate.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeInternal.
type ChangeReviewAggregate interface {
	Aggregate

	// TransitionChange moves one change from FromStatus to ToStatus when it still holds FromStatus.
	TransitionChange(ctx context.Context, in TransitionChangeInput) (TransitionChangeResult, error)

	// ApproveAllOfType approves every pending change of one type in the session in one statement.
	ApproveAllOfType(ctx context.Context, in ApproveAllOfTypeInput) (ApproveAllOfTypeResult, error)
}

type TransitionChangeInput struct {
	SessionID    uuid.UUID
	ChangeID     uuid.UUID
	FromStatus   string
	ToStatus     string
	Reviewer     string
	TransitionAt time.Time
}

type TransitionChangeResult struct {
	ChangeID     uuid.UUID
	ChangeType   string
	Status       string
	TransitionAt time.Time
}

type ApproveAllOfTypeInput struct {
	SessionID  uuid.UUID
	ChangeType string
	Reviewer   string
	ApprovedAt time.Time
}

type ApproveAllOfTypeResult struct {
	SessionID   uuid.UUID
	ChangeType  string
	ApprovedIDs []uuid.UUID
	ApprovedAt  time.Time
}
