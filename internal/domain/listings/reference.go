package listings

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reference rows are the canonical vocabularies a listing must resolve against.

type Make struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
}

func (Make) TableName() string { return "make" }

func (m *Make) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type Model struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MakeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_model_make_name,priority:1" json:"make_id"`
	Name   string    `gorm:"column:name;not null;uniqueIndex:idx_model_make_name,priority:2" json:"name"`
}

func (Model) TableName() string { return "model" }

func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type FuelType struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
}

func (FuelType) TableName() string { return "fuel_type" }

func (f *FuelType) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

type BodyType struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
}

func (BodyType) TableName() string { return "body_type" }

func (b *BodyType) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

type Transmission struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
}

func (Transmission) TableName() string { return "transmission" }

func (t *Transmission) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
