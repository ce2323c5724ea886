package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CarStatus string

const (
	CarStatusPending  CarStatus = "pending"
	CarStatusApproved CarStatus = "approved"
	CarStatusRejected CarStatus = "rejected"
)

type CarCondition string

const (
	CarConditionNew       CarCondition = "new"
	CarConditionUsed      CarCondition = "used"
	CarConditionCertified CarCondition = "certified"
)

func (c CarCondition) Valid() bool {
	switch c {
	case CarConditionNew, CarConditionUsed, CarConditionCertified:
		return true
	}
	return false
}

// MinCarYear is the oldest model year accepted for a listing.
const MinCarYear = 1950

type Car struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SellerID    *uuid.UUID      `gorm:"type:uuid;index" json:"seller_id"`
	Make        string          `gorm:"type:varchar(100);not null;index" json:"make"`
	Model       string          `gorm:"type:varchar(100);not null;index" json:"model"`
	Year        int             `gorm:"not null;index" json:"year"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Mileage     *int            `json:"mileage"`
	Condition   CarCondition    `gorm:"type:varchar(16);not null;default:used" json:"condition"`
	Location    *string         `gorm:"type:varchar(150)" json:"location"`
	Description *string         `gorm:"type:text" json:"description"`

	Status          CarStatus  `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	ApprovedAt      *time.Time `json:"approved_at"`
	RejectedAt      *time.Time `json:"rejected_at"`
	RejectionReason *string    `gorm:"type:text" json:"rejection_reason"`
	ReviewedBy      *uuid.UUID `gorm:"type:uuid" json:"reviewed_by"`
	PublishedAt     *time.Time `gorm:"index" json:"published_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Seller *User      `gorm:"foreignKey:SellerID;constraint:OnDelete:SET NULL" json:"seller,omitempty"`
	Images []CarImage `gorm:"foreignKey:CarID;constraint:OnDelete:CASCADE" json:"images"`
}

func (Car) TableName() string { return "cars" }

func (c *Car) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CarStatusPending
	}
	if c.Condition == "" {
		c.Condition = CarConditionUsed
	}
	return nil
}

func (c *Car) Lifecycle() Lifecycle {
	return lifecycleOf(c.DeletedAt)
}

func (c *Car) IsApproved() bool { return c.Status == CarStatusApproved }

// OwnedBy reports whether userID is the listing's seller.
func (c *Car) OwnedBy(userID uuid.UUID) bool {
	return c.SellerID != nil && *c.SellerID == userID
}

type CarImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CarID     uuid.UUID `gorm:"type:uuid;not null;index" json:"car_id"`
	Path      *string   `gorm:"type:varchar(512)" json:"path"`
	Alt       *string   `gorm:"type:varchar(150)" json:"alt"`
	IsCover   bool      `gorm:"not null;default:false" json:"is_cover"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	URL *string `gorm:"-" json:"url"`
}

func (CarImage) TableName() string { return "car_images" }

func (i *CarImage) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ImageOrder is the display ordering of a car's images.
const ImageOrder = "is_cover DESC, position ASC"
