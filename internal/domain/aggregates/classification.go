package aggregates

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

var ClassificationAggregateContract = Contract{
	Name:   "Extraction.ClassificationAggregate",
	Writes: []string{"extraction_session", "extracted_record", "extraction_change"},
	Notes: "Owns session status progression during classification and the atomic pairing of " +
		"an inserted change with its staged record being marked classified.",
}

// ClassificationAggregate owns the classify write path of one extraction session.
//
// Write method failures should return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type ClassificationAggregate interface {
	Aggregate

	// BeginClassification moves the session to processing. A session already processing is a conflict.
	BeginClassification(ctx context.Context, in BeginClassificationInput) (BeginClassificationResult, error)

	// RecordOutcome stores the change for one staged record and marks the record classified,
	// or stores the classification error and leaves the record for a later run.
	RecordOutcome(ctx context.Context, in RecordOutcomeInput) (RecordOutcomeResult, error)

	// CompleteClassification inserts delete changes and settles the session status.
	CompleteClassification(ctx context.Context, in CompleteClassificationInput) (CompleteClassificationResult, error)
}

// ChangeDraft is a classified change before it is stored.
type ChangeDraft struct {
	DedupeKey         string
	ChangeType        string
	ExtractedData     json.RawMessage
	ExistingListingID *uuid.UUID
	MatchMethod       string
	MatchConfidence   float64
	FieldDiff         json.RawMessage
}

type BeginClassificationInput struct {
	SessionID uuid.UUID
	StartedAt time.Time
}

type BeginClassificationResult struct {
	SessionID      uuid.UUID
	SellerID       uuid.UUID
	PreviousStatus string
	Status         string
}

type RecordOutcomeInput struct {
	SessionID     uuid.UUID
	RecordID      uuid.UUID
	Change        *ChangeDraft
	ClassifyError string
	ClassifiedAt  time.Time
}

type RecordOutcomeResult struct {
	RecordID uuid.UUID
	ChangeID *uuid.UUID
	// false when an earlier run already stored a change with the same dedupe key
	Inserted bool
}

type CompleteClassificationInput struct {
	SessionID   uuid.UUID
	Deletes     []ChangeDraft
	Failed      bool
	Error       string
	CompletedAt time.Time
}

type CompleteClassificationResult struct {
	SessionID       uuid.UUID
	Status          string
	DeletesInserted int
	CompletedAt     time.Time
}
