package extraction

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStatusPending    = "pending"
	SessionStatusProcessing = "processing"
	SessionStatusCompleted  = "completed"
	SessionStatusFailed     = "failed"
)

// ExtractionSession is one price-list extraction run for one seller. Never deleted.
type ExtractionSession struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`

	// pending|processing|completed|failed
	Status         string `gorm:"column:status;not null;index" json:"status"`
	TotalExtracted int    `gorm:"column:total_extracted;not null;default:0" json:"total_extracted"`
	Source         string `gorm:"column:source;not null;default:''" json:"source,omitempty"`
	Error          string `gorm:"column:error;not null;default:''" json:"error,omitempty"`

	ClassifiedAt *time.Time `gorm:"column:classified_at" json:"classified_at,omitempty"`
	AppliedAt    *time.Time `gorm:"column:applied_at" json:"applied_at,omitempty"`
	AppliedBy    *string    `gorm:"column:applied_by" json:"applied_by,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ExtractionSession) TableName() string { return "extraction_session" }

func (s *ExtractionSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ExtractedRecord stages one upstream ExtractedVehicle until it is classified.
type ExtractedRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_extracted_record_session_seq,priority:1" json:"session_id"`
	Seq       int       `gorm:"column:seq;not null;uniqueIndex:idx_extracted_record_session_seq,priority:2" json:"seq"`

	Payload datatypes.JSON `gorm:"column:payload" json:"payload"`

	ClassifiedAt  *time.Time `gorm:"column:classified_at;index" json:"classified_at,omitempty"`
	ClassifyError string     `gorm:"column:classify_error;not null;default:''" json:"classify_error,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ExtractedRecord) TableName() string { return "extracted_record" }

func (r *ExtractedRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Summary counts the classified changes of a session.
type Summary struct {
	SessionID         uuid.UUID `json:"session_id"`
	Status            string    `json:"status"`
	Outcome           string    `json:"outcome"`
	TotalExtracted    int       `json:"total_extracted"`
	TotalClassified   int       `json:"total_classified"`
	TotalNew          int       `json:"total_new"`
	TotalUpdated      int       `json:"total_updated"`
	TotalDeleted      int       `json:"total_deleted"`
	TotalMatched      int       `json:"total_matched"`
	TotalUnchanged    int       `json:"total_unchanged"`
	TotalMissingModel int       `json:"total_missing_model"`
	TotalFailed       int       `json:"total_failed"`
	TotalApplied      int       `json:"total_applied"`

	// RecordErrors lists staged records still failing classification, by seq.
	RecordErrors []RecordError `json:"record_errors,omitempty"`
}

// RecordError is the classification failure of one staged record.
type RecordError struct {
	RecordID uuid.UUID `json:"record_id"`
	Seq      int       `json:"seq"`
	Error    string    `json:"error"`
}

// Summary outcomes. "no_changes" and "classification_failed" are never merged.
const (
	OutcomeNotClassified        = "not_classified"
	OutcomeNoChanges            = "no_changes"
	OutcomeChangesPending       = "changes_pending"
	OutcomeClassificationFailed = "classification_failed"
	OutcomePartiallyFailed      = "partially_failed"
)
