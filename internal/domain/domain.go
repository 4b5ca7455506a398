package domain

import (
	"github.com/google/uuid"

	"github.com/leasingborsen/listing-reconciler/internal/domain/extraction"
	"github.com/leasingborsen/listing-reconciler/internal/domain/listings"
)

const (
	ChangeTypeCreate       = extraction.ChangeTypeCreate
	ChangeTypeUpdate       = extraction.ChangeTypeUpdate
	ChangeTypeDelete       = extraction.ChangeTypeDelete
	ChangeTypeUnchanged    = extraction.ChangeTypeUnchanged
	ChangeTypeMissingModel = extraction.ChangeTypeMissingModel

	ChangeStatusPending  = extraction.ChangeStatusPending
	ChangeStatusApproved = extraction.ChangeStatusApproved
	ChangeStatusRejected = extraction.ChangeStatusRejected
	ChangeStatusApplied  = extraction.ChangeStatusApplied

	MatchMethodExact         = extraction.MatchMethodExact
	MatchMethodFuzzy         = extraction.MatchMethodFuzzy
	MatchMethodManual        = extraction.MatchMethodManual
	MatchMethodUnmatched     = extraction.MatchMethodUnmatched
	MatchMethodModelNotFound = extraction.MatchMethodModelNotFound

	SessionStatusPending    = extraction.SessionStatusPending
	SessionStatusProcessing = extraction.SessionStatusProcessing
	SessionStatusCompleted  = extraction.SessionStatusCompleted
	SessionStatusFailed     = extraction.SessionStatusFailed

	OutcomeNotClassified        = extraction.OutcomeNotClassified
	OutcomeNoChanges            = extraction.OutcomeNoChanges
	OutcomeChangesPending       = extraction.OutcomeChangesPending
	OutcomeClassificationFailed = extraction.OutcomeClassificationFailed
	OutcomePartiallyFailed      = extraction.OutcomePartiallyFailed
)

type Make = listings.Make
type Model = listings.Model
type FuelType = listings.FuelType
type BodyType = listings.BodyType
type Transmission = listings.Transmission
type Listing = listings.Listing
type Offer = listings.Offer

type ExtractedVehicle = extraction.ExtractedVehicle
type ExtractedOffer = extraction.ExtractedOffer
type ExtractionSession = extraction.ExtractionSession
type ExtractedRecord = extraction.ExtractedRecord
type Change = extraction.Change
type FieldChange = extraction.FieldChange
type FieldDiff = extraction.FieldDiff
type Summary = extraction.Summary
type RecordError = extraction.RecordError

var ErrInvalidVehicle = extraction.ErrInvalidVehicle

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&Make{},
		&Model{},
		&FuelType{},
		&BodyType{},
		&Transmission{},
		&Listing{},
		&Offer{},
		&ExtractionSession{},
		&ExtractedRecord{},
		&Change{},
	}
}

func CheapestMonthly(offers []Offer) float64 { return listings.CheapestMonthly(offers) }

func RecordDedupeKey(recordID uuid.UUID) string  { return extraction.RecordDedupeKey(recordID) }
func DeleteDedupeKey(listingID uuid.UUID) string { return extraction.DeleteDedupeKey(listingID) }
func Approvable(changeType string) bool          { return extraction.Approvable(changeType) }
