package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invoice status values. A payment completing flips an invoice to paid;
// nothing flips it back automatically.
const (
	InvoiceStatusPaid    = "paid"
	InvoiceStatusUnpaid  = "unpaid"
	InvoiceStatusOverdue = "overdue"
)

// Invoice stores a customer invoice with denormalized totals.
type Invoice struct {
	ID            string        `gorm:"type:char(36);primaryKey" json:"id"`
	UserID        uint          `gorm:"not null;index" json:"user_id"`
	ClientID      string        `gorm:"type:char(36);not null;index" json:"client_id"`
	Client        *Client       `gorm:"foreignKey:ClientID;constraint:OnDelete:CASCADE" json:"client,omitempty"`
	InvoiceNumber string        `gorm:"type:varchar(50);not null" json:"invoice_number" validate:"required,max=50"`
	IssueDate     time.Time     `gorm:"type:date;not null" json:"issue_date"`
	DueDate       time.Time     `gorm:"type:date;not null" json:"due_date"`
	Status        string        `gorm:"type:varchar(10);default:'unpaid';index" json:"status" validate:"omitempty,oneof=paid unpaid overdue"`
	Notes         string        `gorm:"type:text" json:"notes"`
	Subtotal      float64       `gorm:"type:decimal(10,2);default:0" json:"subtotal"`
	TaxRate       float64       `gorm:"type:decimal(5,2);default:0" json:"tax_rate"`
	TaxAmount     float64       `gorm:"type:decimal(10,2);default:0" json:"tax_amount"`
	Total         float64       `gorm:"type:decimal(10,2);default:0" json:"total"`
	Items         []InvoiceItem `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt     time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// InvoiceItem is a single line item on an invoice.
type InvoiceItem struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	InvoiceID   string  `gorm:"type:char(36);not null;index" json:"invoice_id"`
	Description string  `gorm:"type:varchar(255);not null" json:"description" validate:"required,max=255"`
	Quantity    float64 `gorm:"type:decimal(10,2);not null" json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `gorm:"type:decimal(10,2);not null" json:"unit_price" validate:"gte=0"`
	Amount      float64 `gorm:"type:decimal(10,2);not null" json:"amount"`
}

// BeforeCreate assigns a UUID primary key.
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// BeforeSave keeps the line amount consistent with quantity and unit price.
func (it *InvoiceItem) BeforeSave(tx *gorm.DB) error {
	it.Amount = it.Quantity * it.UnitPrice
	return nil
}

// RecalculateTotals recomputes subtotal, tax amount and total from the
// loaded items. Tax amount is derived from the tax rate percentage.
func (i *Invoice) RecalculateTotals() {
	subtotal := 0.0
	for idx := range i.Items {
		i.Items[idx].Amount = i.Items[idx].Quantity * i.Items[idx].UnitPrice
		subtotal += i.Items[idx].Amount
	}
	i.Subtotal = subtotal
	i.TaxAmount = subtotal * (i.TaxRate / 100)
	i.Total = i.Subtotal + i.TaxAmount
}

// IsPaid reports whether the invoice has been settled.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}
