package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client stores a billable customer belonging to a user.
type Client struct {
	ID          string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name" validate:"required,max=255"`
	Email       string    `gorm:"type:varchar(200);default:null" json:"email" validate:"omitempty,email,max=200"`
	PhoneNumber string    `gorm:"type:varchar(20);default:null" json:"phone_number" validate:"max=20"`
	Address     string    `gorm:"type:text" json:"address"`
	City        string    `gorm:"type:varchar(100);default:null" json:"city" validate:"max=100"`
	State       string    `gorm:"type:varchar(100);default:null" json:"state" validate:"max=100"`
	ZipCode     string    `gorm:"type:varchar(20);default:null" json:"zip_code" validate:"max=20"`
	Country     string    `gorm:"type:varchar(100);default:null" json:"country" validate:"max=100"`
	CompanyName string    `gorm:"type:varchar(255);default:null" json:"company_name" validate:"max=255"`
	Notes       string    `gorm:"type:text" json:"notes"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key.
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
