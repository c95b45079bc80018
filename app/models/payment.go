package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment status values. pending -> {processing, completed, failed};
// processing -> {completed, failed}; completed -> refunded; failed and
// refunded are terminal.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// MetadataMap stores provider echo-back data as a JSON column.
type MetadataMap map[string]string

// Value implements driver.Valuer.
func (m MetadataMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *MetadataMap) Scan(value interface{}) error {
	if value == nil {
		*m = MetadataMap{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported metadata column type")
	}
	if len(b) == 0 {
		*m = MetadataMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// InvoicePayment tracks a single payment attempt against an invoice.
// Records are never deleted; retries create new records. The gateway
// config reference survives config deletion via the denormalized
// GatewayName.
type InvoicePayment struct {
	ID               string         `gorm:"type:char(36);primaryKey" json:"id"`
	InvoiceID        string         `gorm:"type:char(36);not null;index" json:"invoice_id"`
	Invoice          *Invoice       `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"invoice,omitempty"`
	GatewayID        *string        `gorm:"type:char(36);index" json:"gateway_id,omitempty"`
	Gateway          *GatewayConfig `gorm:"foreignKey:GatewayID;constraint:OnDelete:SET NULL" json:"-"`
	GatewayName      string         `gorm:"type:varchar(50);not null;index" json:"gateway_name"`
	Amount           float64        `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency         string         `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	Status           string         `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	GatewayPaymentID *string        `gorm:"type:varchar(255);index" json:"gateway_payment_id,omitempty"`
	GatewaySessionID *string        `gorm:"type:varchar(255);index" json:"gateway_session_id,omitempty"`
	PaymentMethod    *string        `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	Metadata         MetadataMap    `gorm:"type:longtext" json:"metadata"`
	ErrorMessage     *string        `gorm:"type:text" json:"error_message,omitempty"`
	PaymentDate      *time.Time     `gorm:"type:timestamp;default:null" json:"payment_date,omitempty"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key.
func (p *InvoicePayment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Metadata == nil {
		p.Metadata = MetadataMap{}
	}
	return nil
}

// CanTransitionTo reports whether the payment state machine allows
// moving from the current status to the target status.
func (p *InvoicePayment) CanTransitionTo(target string) bool {
	if p.Status == target {
		return true
	}
	switch p.Status {
	case PaymentStatusPending:
		return target == PaymentStatusProcessing || target == PaymentStatusCompleted || target == PaymentStatusFailed
	case PaymentStatusProcessing:
		return target == PaymentStatusCompleted || target == PaymentStatusFailed
	case PaymentStatusCompleted:
		return target == PaymentStatusRefunded
	default:
		// failed and refunded are terminal
		return false
	}
}

// StampCompleted sets the completion timestamp exactly once. Returns
// true when the stamp was applied by this call.
func (p *InvoicePayment) StampCompleted(at time.Time) bool {
	if p.PaymentDate != nil {
		return false
	}
	p.PaymentDate = &at
	return true
}
