package extraction

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type ChangeFilter struct {
	ChangeType   string
	ChangeStatus string
}

type TypeStatusCount struct {
	ChangeType   string
	ChangeStatus string
	Count        int64
}

type ChangeRepo interface {
	// CreateIfAbsent inserts unless (session_id, dedupe_key) exists. False means an earlier row won.
	CreateIfAbsent(dbc dbctx.Context, c *types.Change) (bool, error)
	GetByID(dbc dbctx.Context, sessionID, id uuid.UUID) (*types.Change, error)
	GetByIDForUpdate(dbc dbctx.Context, sessionID, id uuid.UUID) (*types.Change, error)
	ListBySession(dbc dbctx.Context, sessionID uuid.UUID, f ChangeFilter) ([]*types.Change, error)
	ListIDsByTypeStatus(dbc dbctx.Context, sessionID uuid.UUID, changeType, status string) ([]uuid.UUID, error)
	ClaimedListingIDs(dbc dbctx.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
	CountByTypeStatus(dbc dbctx.Context, sessionID uuid.UUID) ([]TypeStatusCount, error)
	UpdateStatusIn(dbc dbctx.Context, sessionID uuid.UUID, ids []uuid.UUID, expected string, updates map[string]interface{}) (int64, error)
}

type changeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChangeRepo(db *gorm.DB, baseLog *logger.Logger) ChangeRepo {
	return &changeRepo{
		db:  db,
		log: baseLog.With("repo", "ChangeRepo"),
	}
}

func (r *changeRepo) CreateIfAbsent(dbc dbctx.Context, c *types.Change) (bool, error) {
	if c == nil {
		return false, nil
	}
	if c.ChangeStatus == "" {
		c.ChangeStatus = types.ChangeStatusPending
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *changeRepo) GetByID(dbc dbctx.Context, sessionID, id uuid.UUID) (*types.Change, error) {
	return r.get(dbc.DB(r.db), sessionID, id)
}

func (r *changeRepo) GetByIDForUpdate(dbc dbctx.Context, sessionID, id uuid.UUID) (*types.Change, error) {
	return r.get(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), sessionID, id)
}

func (r *changeRepo) get(q *gorm.DB, sessionID, id uuid.UUID) (*types.Change, error) {
	if id == uuid.Nil || sessionID == uuid.Nil {
		return nil, nil
	}
	var c types.Change
	err := q.Where("id = ? AND session_id = ?", id, sessionID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *changeRepo) ListBySession(dbc dbctx.Context, sessionID uuid.UUID, f ChangeFilter) ([]*types.Change, error) {
	var out []*types.Change
	q := dbc.DB(r.db).Where("session_id = ?", sessionID)
	if f.ChangeType != "" {
		q = q.Where("change_type = ?", f.ChangeType)
	}
	if f.ChangeStatus != "" {
		q = q.Where("change_status = ?", f.ChangeStatus)
	}
	if err := q.Order("created_at ASC, dedupe_key ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *changeRepo) ListIDsByTypeStatus(dbc dbctx.Context, sessionID uuid.UUID, changeType, status string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := dbc.DB(r.db).Model(&types.Change{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ? AND change_type = ? AND change_status = ?", sessionID, changeType, status).
		Order("created_at ASC, dedupe_key ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ClaimedListingIDs returns listings already referenced by a non-delete change of the session.
func (r *changeRepo) ClaimedListingIDs(dbc dbctx.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := dbc.DB(r.db).Model(&types.Change{}).
		Where("session_id = ? AND existing_listing_id IS NOT NULL AND change_type <> ?", sessionID, types.ChangeTypeDelete).
		Pluck("existing_listing_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *changeRepo) CountByTypeStatus(dbc dbctx.Context, sessionID uuid.UUID) ([]TypeStatusCount, error) {
	var rows []TypeStatusCount
	err := dbc.DB(r.db).Model(&types.Change{}).
		Select("change_type, change_status, COUNT(*) AS count").
		Where("session_id = ?", sessionID).
		Group("change_type, change_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatusIn is the bulk compare-and-set: only rows still in expected are touched.
func (r *changeRepo) UpdateStatusIn(dbc dbctx.Context, sessionID uuid.UUID, ids []uuid.UUID, expected string, updates map[string]interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	set := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		set[k] = v
	}
	if _, ok := set["updated_at"]; !ok {
		set["updated_at"] = time.Now().UTC()
	}
	res := dbc.DB(r.db).Model(&types.Change{}).
		Where("session_id = ? AND id IN ? AND change_status = ?", sessionID, ids, expected).
		Updates(set)
	return res.RowsAffected, res.Error
}
