package extraction

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, s *types.ExtractionSession) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ExtractionSession, error)
	GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.ExtractionSession, error)
	ListBySeller(dbc dbctx.Context, sellerID uuid.UUID, limit int) ([]*types.ExtractionSession, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	IncrementTotalExtracted(dbc dbctx.Context, id uuid.UUID, n int) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{
		db:  db,
		log: baseLog.With("repo", "SessionRepo"),
	}
}

func (r *sessionRepo) Create(dbc dbctx.Context, s *types.ExtractionSession) error {
	if s == nil {
		return nil
	}
	if s.Status == "" {
		s.Status = types.SessionStatusPending
	}
	return dbc.DB(r.db).Create(s).Error
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ExtractionSession, error) {
	return r.get(dbc.DB(r.db), id)
}

func (r *sessionRepo) GetByIDForUpdate(dbc dbctx.Context, id uuid.UUID) (*types.ExtractionSession, error) {
	return r.get(dbc.DB(r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *sessionRepo) get(q *gorm.DB, id uuid.UUID) (*types.ExtractionSession, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var s types.ExtractionSession
	err := q.Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) ListBySeller(dbc dbctx.Context, sellerID uuid.UUID, limit int) ([]*types.ExtractionSession, error) {
	var out []*types.ExtractionSession
	if sellerID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 50
	}
	err := dbc.DB(r.db).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.ExtractionSession{}).Where("id = ?", id).Updates(updates).Error
}

func (r *sessionRepo) IncrementTotalExtracted(dbc dbctx.Context, id uuid.UUID, n int) error {
	if id == uuid.Nil || n == 0 {
		return nil
	}
	return dbc.DB(r.db).Model(&types.ExtractionSession{}).
		Where("id = ?", id).
		Update("total_extracted", gorm.Expr("total_extracted + ?", n)).Error
}
