package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentWebhookEvent stores provider webhook deliveries. The provider
// event id carries a global unique constraint and is the idempotency
// anchor: a second delivery of the same event id must not create a
// second row or reprocess the payment.
type PaymentWebhookEvent struct {
	ID          string          `gorm:"type:char(36);primaryKey" json:"id"`
	GatewayName string          `gorm:"type:varchar(50);not null;index" json:"gateway_name"`
	EventType   string          `gorm:"type:varchar(100);not null;index" json:"event_type"`
	EventID     string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_webhook_events_event_id" json:"event_id"`
	Payload     string          `gorm:"type:longtext;not null" json:"payload"`
	IsProcessed bool            `gorm:"default:false;index" json:"is_processed"`
	PaymentID   *string         `gorm:"type:char(36);index" json:"payment_id,omitempty"`
	Payment     *InvoicePayment `gorm:"foreignKey:PaymentID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	ProcessedAt *time.Time      `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
}

// BeforeCreate assigns a UUID primary key.
func (e *PaymentWebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// MarkProcessed flags the event processed and stamps the timestamp.
func (e *PaymentWebhookEvent) MarkProcessed(at time.Time) {
	e.IsProcessed = true
	e.ProcessedAt = &at
}
