package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription status values.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
	SubscriptionStatusTrial    = "trial"
	SubscriptionStatusOverdue  = "overdue"
)

// Billing cycle values for plans.
const (
	BillingCycle14Days   = "14_days"
	BillingCycleMonthly  = "monthly"
	BillingCycleYearly   = "yearly"
	BillingCycleLifetime = "lifetime"
)

// Plan describes a subscription tier and its feature limits.
type Plan struct {
	ID                 string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"name" validate:"required,oneof=free pro business trial"`
	Description        string    `gorm:"type:text" json:"description"`
	Price              float64   `gorm:"type:decimal(6,2);not null" json:"price"`
	BillingCycle       string    `gorm:"type:varchar(20);not null" json:"billing_cycle" validate:"oneof=14_days monthly yearly lifetime"`
	InvoicesLimit      int       `gorm:"default:3" json:"invoices_limit"`
	EmailNotifications bool      `gorm:"default:false" json:"email_notifications"`
	PaymentCollection  bool      `gorm:"default:false" json:"payment_collection"`
	Analytics          bool      `gorm:"default:false" json:"analytics"`
	IsActive           bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key.
func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// DurationDays returns the plan duration in days for the billing cycle.
func (p *Plan) DurationDays() int {
	switch p.BillingCycle {
	case BillingCycle14Days:
		return 14
	case BillingCycleMonthly:
		return 30
	case BillingCycleYearly:
		return 365
	case BillingCycleLifetime:
		return 365 * 100
	default:
		return 0
	}
}

// Subscription links a user to a plan.
type Subscription struct {
	ID        string     `gorm:"type:char(36);primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	PlanID    string     `gorm:"type:char(36);not null;index" json:"plan_id"`
	Plan      *Plan      `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status    string     `gorm:"type:varchar(20);default:'active';index" json:"status"`
	StartDate time.Time  `gorm:"type:date;not null" json:"start_date"`
	EndDate   *time.Time `gorm:"type:date" json:"end_date,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key.
func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// UsageTracker records daily usage metrics for a subscription. One row
// per user per day.
type UsageTracker struct {
	ID             string      `gorm:"type:char(36);primaryKey" json:"id"`
	SubscriptionID string      `gorm:"type:char(36);not null;index" json:"subscription_id"`
	UserID         uint        `gorm:"not null;index:ux_usage_trackers_user_date,unique,priority:1" json:"user_id"`
	Date           time.Time   `gorm:"type:date;not null;index:ux_usage_trackers_user_date,unique,priority:2" json:"date"`
	Metrics        MetadataMap `gorm:"type:longtext" json:"metrics"`
	CreatedAt      time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key.
func (u *UsageTracker) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Metrics == nil {
		u.Metrics = MetadataMap{}
	}
	return nil
}
