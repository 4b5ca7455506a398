package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainagg "github.com/leasingborsen/listing-reconciler/internal/domain/aggregates"
)

// RecordDraft builds the storable change for a classified staged record.
func RecordDraft(recordID uuid.UUID, v types.ExtractedVehicle, c Classification) (domainagg.ChangeDraft, error) {
	snapshot, err := json.Marshal(v)
	if err != nil {
		return domainagg.ChangeDraft{}, fmt.Errorf("encode snapshot: %w", err)
	}
	d := domainagg.ChangeDraft{
		DedupeKey:       types.RecordDedupeKey(recordID),
		ChangeType:      c.ChangeType,
		ExtractedData:   snapshot,
		MatchMethod:     c.Match.Method,
		MatchConfidence: c.Match.Confidence,
	}
	if c.Listing != nil {
		id := c.Listing.ID
		d.ExistingListingID = &id
	}
	if !c.Diff.Empty() {
		raw, err := json.Marshal(c.Diff)
		if err != nil {
			return domainagg.ChangeDraft{}, fmt.Errorf("encode diff: %w", err)
		}
		d.FieldDiff = raw
	}
	return d, nil
}

// DeleteDraft proposes removing a listing no record matched. It carries no snapshot.
func DeleteDraft(l *types.Listing) domainagg.ChangeDraft {
	id := l.ID
	return domainagg.ChangeDraft{
		DedupeKey:         types.DeleteDedupeKey(id),
		ChangeType:        types.ChangeTypeDelete,
		ExtractedData:     json.RawMessage("null"),
		ExistingListingID: &id,
		MatchMethod:       types.MatchMethodUnmatched,
	}
}
