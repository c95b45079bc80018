package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExpenseCategory groups expenses per user.
type ExpenseCategory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name" validate:"required,max=100"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Expense stores a business expense, optionally with a receipt stored
// in object storage.
type Expense struct {
	ID          string           `gorm:"type:char(36);primaryKey" json:"id"`
	UserID      uint             `gorm:"not null;index" json:"user_id"`
	CategoryID  *uint            `gorm:"index" json:"category_id,omitempty"`
	Category    *ExpenseCategory `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"category,omitempty"`
	Amount      float64          `gorm:"type:decimal(10,2);not null" json:"amount" validate:"gt=0"`
	Date        time.Time        `gorm:"type:date;not null;index" json:"date"`
	Description string           `gorm:"type:varchar(255);not null" json:"description" validate:"required,max=255"`
	Notes       string           `gorm:"type:text" json:"notes"`
	ReceiptKey  string           `gorm:"type:varchar(255);default:''" json:"receipt_key"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key.
func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
