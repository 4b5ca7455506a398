package extraction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ChangeTypeCreate       = "create"
	ChangeTypeUpdate       = "update"
	ChangeTypeDelete       = "delete"
	ChangeTypeUnchanged    = "unchanged"
	ChangeTypeMissingModel = "missing_model"
)

const (
	ChangeStatusPending  = "pending"
	ChangeStatusApproved = "approved"
	ChangeStatusRejected = "rejected"
	ChangeStatusApplied  = "applied"
)

const (
	MatchMethodExact         = "exact"
	MatchMethodFuzzy         = "fuzzy"
	MatchMethodManual        = "manual"
	MatchMethodUnmatched     = "unmatched"
	MatchMethodModelNotFound = "model_not_found"
)

// Change is one classified proposal against the listings store.
// After creation only the status, review and applied fields mutate.
// AppliedAt is non-nil iff ChangeStatus == applied.
type Change struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_change_session_dedupe,priority:1" json:"session_id"`
	DedupeKey string    `gorm:"column:dedupe_key;not null;uniqueIndex:idx_change_session_dedupe,priority:2" json:"dedupe_key"`

	ChangeType   string `gorm:"column:change_type;not null;index" json:"change_type"`
	ChangeStatus string `gorm:"column:change_status;not null;index" json:"change_status"`

	// Immutable ExtractedVehicle copy; JSON null for delete changes.
	ExtractedData datatypes.JSON `gorm:"column:extracted_data" json:"extracted_data"`

	ExistingListingID *uuid.UUID     `gorm:"type:uuid;column:existing_listing_id;index" json:"existing_listing_id,omitempty"`
	MatchMethod       string         `gorm:"column:match_method;not null" json:"match_method"`
	MatchConfidence   float64        `gorm:"column:match_confidence;not null;default:0" json:"match_confidence"`
	FieldDiff         datatypes.JSON `gorm:"column:field_diff" json:"field_diff,omitempty"`

	ReviewedAt *time.Time `gorm:"column:reviewed_at" json:"reviewed_at,omitempty"`
	ReviewedBy *string    `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	AppliedAt  *time.Time `gorm:"column:applied_at" json:"applied_at,omitempty"`
	AppliedBy  *string    `gorm:"column:applied_by" json:"applied_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Change) TableName() string { return "extraction_change" }

func (c *Change) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Vehicle decodes the snapshot. Delete changes have none.
func (c *Change) Vehicle() (*ExtractedVehicle, error) {
	if len(c.ExtractedData) == 0 || string(c.ExtractedData) == "null" {
		return nil, nil
	}
	var v ExtractedVehicle
	if err := json.Unmarshal(c.ExtractedData, &v); err != nil {
		return nil, fmt.Errorf("decode change snapshot %s: %w", c.ID, err)
	}
	return &v, nil
}

// Diff decodes the field diff; nil when absent.
func (c *Change) Diff() (FieldDiff, error) {
	if len(c.FieldDiff) == 0 || string(c.FieldDiff) == "null" {
		return nil, nil
	}
	var d FieldDiff
	if err := json.Unmarshal(c.FieldDiff, &d); err != nil {
		return nil, fmt.Errorf("decode change diff %s: %w", c.ID, err)
	}
	return d, nil
}

// Approvable reports whether the change type can move past pending.
func Approvable(changeType string) bool {
	switch changeType {
	case ChangeTypeCreate, ChangeTypeUpdate, ChangeTypeDelete:
		return true
	default:
		return false
	}
}

func RecordDedupeKey(recordID uuid.UUID) string  { return "record:" + recordID.String() }
func DeleteDedupeKey(listingID uuid.UUID) string { return "delete:" + listingID.String() }

// FieldChange is one differing field: current listing value and extracted value.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// FieldDiff maps field name to its change. Empty means the record matches the listing.
type FieldDiff map[string]FieldChange

func (d FieldDiff) Empty() bool { return len(d) == 0 }

func (d FieldDiff) Fields() []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	return out
}
