package listings

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Listing is a published lease offer group for one vehicle configuration of a seller.
// MonthlyPrice is denormalized and always equals the cheapest Offer.
type Listing struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID uuid.UUID `gorm:"type:uuid;not null;index" json:"seller_id"`

	MakeID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"make_id"`
	ModelID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"model_id"`
	FuelTypeID     *uuid.UUID `gorm:"type:uuid" json:"fuel_type_id,omitempty"`
	BodyTypeID     *uuid.UUID `gorm:"type:uuid" json:"body_type_id,omitempty"`
	TransmissionID *uuid.UUID `gorm:"type:uuid" json:"transmission_id,omitempty"`

	Make         string `gorm:"column:make;not null" json:"make"`
	Model        string `gorm:"column:model;not null" json:"model"`
	Variant      string `gorm:"column:variant;not null;default:''" json:"variant"`
	Horsepower   int    `gorm:"column:horsepower;not null;default:0" json:"horsepower"`
	Transmission string `gorm:"column:transmission;not null;default:''" json:"transmission"`
	FuelType     string `gorm:"column:fuel_type;not null;default:''" json:"fuel_type"`
	BodyType     string `gorm:"column:body_type;not null;default:''" json:"body_type"`

	MonthlyPrice float64 `gorm:"column:monthly_price;not null;default:0" json:"monthly_price"`

	Offers []Offer `gorm:"foreignKey:ListingID" json:"offers,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (Listing) TableName() string { return "listing" }

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Offer is one price point of a listing: contract length, yearly mileage and payments.
type Offer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;index" json:"listing_id"`

	MonthlyPrice   float64 `gorm:"column:monthly_price;not null" json:"monthly_price"`
	PeriodMonths   int     `gorm:"column:period_months;not null" json:"period_months"`
	MileagePerYear int     `gorm:"column:mileage_per_year;not null;default:0" json:"mileage_per_year"`
	FirstPayment   float64 `gorm:"column:first_payment;not null;default:0" json:"first_payment"`
	TotalPrice     float64 `gorm:"column:total_price;not null;default:0" json:"total_price,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Offer) TableName() string { return "listing_offer" }

func (o *Offer) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// CheapestMonthly returns the minimum monthly price among offers, or 0 when there are none.
func CheapestMonthly(offers []Offer) float64 {
	min := 0.0
	for i, o := range offers {
		if i == 0 || o.MonthlyPrice < min {
			min = o.MonthlyPrice
		}
	}
	return min
}
