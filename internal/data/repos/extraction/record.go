package extraction

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

// RecordRepo stages upstream vehicles. A record with classified_at NULL is pending classification.
type RecordRepo interface {
	Create(dbc dbctx.Context, records []*types.ExtractedRecord) error
	MaxSeq(dbc dbctx.Context, sessionID uuid.UUID) (int, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ExtractedRecord, error)
	ListUnclassified(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ExtractedRecord, error)
	ListFailed(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ExtractedRecord, error)
	MarkClassified(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkFailed(dbc dbctx.Context, id uuid.UUID, message string) error
	CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (total int64, failed int64, err error)
}

type recordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
	return &recordRepo{
		db:  db,
		log: baseLog.With("repo", "RecordRepo"),
	}
}

func (r *recordRepo) Create(dbc dbctx.Context, records []*types.ExtractedRecord) error {
	if len(records) == 0 {
		return nil
	}
	return dbc.DB(r.db).Create(&records).Error
}

func (r *recordRepo) MaxSeq(dbc dbctx.Context, sessionID uuid.UUID) (int, error) {
	var maxSeq sql.NullInt64
	row := dbc.DB(r.db).Model(&types.ExtractedRecord{}).
		Where("session_id = ?", sessionID).
		Select("MAX(seq)").
		Row()
	if err := row.Scan(&maxSeq); err != nil {
		return 0, err
	}
	return int(maxSeq.Int64), nil
}

func (r *recordRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ExtractedRecord, error) {
	return r.list(dbc, "session_id = ?", sessionID)
}

func (r *recordRepo) ListUnclassified(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ExtractedRecord, error) {
	return r.list(dbc, "session_id = ? AND classified_at IS NULL", sessionID)
}

// ListFailed returns unclassified records carrying a classification error.
func (r *recordRepo) ListFailed(dbc dbctx.Context, sessionID uuid.UUID) ([]*types.ExtractedRecord, error) {
	return r.list(dbc, "session_id = ? AND classified_at IS NULL AND classify_error <> ''", sessionID)
}

func (r *recordRepo) list(dbc dbctx.Context, where string, args ...any) ([]*types.ExtractedRecord, error) {
	var out []*types.ExtractedRecord
	if err := dbc.DB(r.db).Where(where, args...).Order("seq ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkClassified clears any earlier error. False when the record was already classified.
func (r *recordRepo) MarkClassified(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := dbc.DB(r.db).Model(&types.ExtractedRecord{}).
		Where("id = ? AND classified_at IS NULL", id).
		Updates(map[string]interface{}{
			"classified_at":  at,
			"classify_error": "",
		})
	return res.RowsAffected > 0, res.Error
}

func (r *recordRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, message string) error {
	return dbc.DB(r.db).Model(&types.ExtractedRecord{}).
		Where("id = ? AND classified_at IS NULL", id).
		Update("classify_error", message).Error
}

// CountBySession counts staged records and those still failing classification.
func (r *recordRepo) CountBySession(dbc dbctx.Context, sessionID uuid.UUID) (int64, int64, error) {
	var row struct {
		Total  int64
		Failed int64
	}
	err := dbc.DB(r.db).Model(&types.ExtractedRecord{}).
		Select("COUNT(*) AS total, COALESCE(SUM(CASE WHEN classified_at IS NULL AND classify_error <> '' THEN 1 ELSE 0 END), 0) AS failed").
		Where("session_id = ?", sessionID).
		Scan(&row).Error
	return row.Total, row.Failed, err
}
