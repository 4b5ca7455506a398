package listings

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
	domainlistings "github.com/leasingborsen/listing-reconciler/internal/domain/listings"
	"github.com/leasingborsen/listing-reconciler/internal/platform/dbctx"
	"github.com/leasingborsen/listing-reconciler/internal/platform/logger"
)

// ReferenceRepo resolves vocabulary names to reference rows. Lookups return nil, nil when absent.
type ReferenceRepo interface {
	FindMake(dbc dbctx.Context, name string) (*types.Make, error)
	FindModel(dbc dbctx.Context, makeID uuid.UUID, name string) (*types.Model, error)
	FindFuelType(dbc dbctx.Context, name string) (*types.FuelType, error)
	FindBodyType(dbc dbctx.Context, name string) (*types.BodyType, error)
	FindTransmission(dbc dbctx.Context, name string) (*types.Transmission, error)
	LoadCatalog(dbc dbctx.Context) (*domainlistings.Catalog, error)

	EnsureMake(dbc dbctx.Context, name string) (*types.Make, error)
	EnsureModel(dbc dbctx.Context, makeID uuid.UUID, name string) (*types.Model, error)
	EnsureFuelType(dbc dbctx.Context, name string) (*types.FuelType, error)
	EnsureBodyType(dbc dbctx.Context, name string) (*types.BodyType, error)
	EnsureTransmission(dbc dbctx.Context, name string) (*types.Transmission, error)
}

type referenceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReferenceRepo(db *gorm.DB, baseLog *logger.Logger) ReferenceRepo {
	return &referenceRepo{
		db:  db,
		log: baseLog.With("repo", "ReferenceRepo"),
	}
}

func findByName[T any](q *gorm.DB, name string) (*T, error) {
	key := domainlistings.NormalizeName(name)
	if key == "" {
		return nil, nil
	}
	var row T
	err := q.Where("LOWER(TRIM(name)) = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *referenceRepo) FindMake(dbc dbctx.Context, name string) (*types.Make, error) {
	return findByName[types.Make](dbc.DB(r.db), name)
}

func (r *referenceRepo) FindModel(dbc dbctx.Context, makeID uuid.UUID, name string) (*types.Model, error) {
	if makeID == uuid.Nil {
		return nil, nil
	}
	return findByName[types.Model](dbc.DB(r.db).Where("make_id = ?", makeID), name)
}

func (r *referenceRepo) FindFuelType(dbc dbctx.Context, name string) (*types.FuelType, error) {
	return findByName[types.FuelType](dbc.DB(r.db), name)
}

func (r *referenceRepo) FindBodyType(dbc dbctx.Context, name string) (*types.BodyType, error) {
	return findByName[types.BodyType](dbc.DB(r.db), name)
}

func (r *referenceRepo) FindTransmission(dbc dbctx.Context, name string) (*types.Transmission, error) {
	return findByName[types.Transmission](dbc.DB(r.db), name)
}

func (r *referenceRepo) LoadCatalog(dbc dbctx.Context) (*domainlistings.Catalog, error) {
	var makes []*types.Make
	if err := dbc.DB(r.db).Find(&makes).Error; err != nil {
		return nil, err
	}
	var models []*types.Model
	if err := dbc.DB(r.db).Find(&models).Error; err != nil {
		return nil, err
	}
	return domainlistings.NewCatalog(makes, models), nil
}

func (r *referenceRepo) EnsureMake(dbc dbctx.Context, name string) (*types.Make, error) {
	if found, err := r.FindMake(dbc, name); err != nil || found != nil {
		return found, err
	}
	row := &types.Make{Name: name}
	return row, dbc.DB(r.db).Create(row).Error
}

func (r *referenceRepo) EnsureModel(dbc dbctx.Context, makeID uuid.UUID, name string) (*types.Model, error) {
	if found, err := r.FindModel(dbc, makeID, name); err != nil || found != nil {
		return found, err
	}
	row := &types.Model{MakeID: makeID, Name: name}
	return row, dbc.DB(r.db).Create(row).Error
}

func (r *referenceRepo) EnsureFuelType(dbc dbctx.Context, name string) (*types.FuelType, error) {
	if found, err := r.FindFuelType(dbc, name); err != nil || found != nil {
		return found, err
	}
	row := &types.FuelType{Name: name}
	return row, dbc.DB(r.db).Create(row).Error
}

func (r *referenceRepo) EnsureBodyType(dbc dbctx.Context, name string) (*types.BodyType, error) {
	if found, err := r.FindBodyType(dbc, name); err != nil || found != nil {
		return found, err
	}
	row := &types.BodyType{Name: name}
	return row, dbc.DB(r.db).Create(row).Error
}

func (r *referenceRepo) EnsureTransmission(dbc dbctx.Context, name string) (*types.Transmission, error) {
	if found, err := r.FindTransmission(dbc, name); err != nil || found != nil {
		return found, err
	}
	row := &types.Transmission{Name: name}
	return row, dbc.DB(r.db).Create(row).Error
}
