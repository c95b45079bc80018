package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Gateway name constants. Each maps to a registered payment plugin.
const (
	GatewayStripe   = "stripe"
	GatewayPayPal   = "paypal"
	GatewayRazorpay = "razorpay"
)

// GatewayConfig stores per-user payment gateway credentials and the
// default gateway selection. Credentials are encrypted at rest; the
// plaintext bundle never touches the database.
type GatewayConfig struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID         uint      `gorm:"not null;index:ux_gateway_configs_user_gateway,unique,priority:1" json:"user_id"`
	GatewayName    string    `gorm:"type:varchar(50);not null;index:ux_gateway_configs_user_gateway,unique,priority:2" json:"gateway_name" validate:"required,oneof=stripe paypal razorpay"`
	IsActive       bool      `gorm:"default:true;index" json:"is_active"`
	IsDefault      bool      `gorm:"default:false" json:"is_default"`
	CredentialsEnc string    `gorm:"type:text" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key.
func (g *GatewayConfig) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}

// EnsureDefaultWhenOnly forces the default flag when the owner has no
// other configs: a user's only gateway config is always the default,
// regardless of what the request asked for.
func (g *GatewayConfig) EnsureDefaultWhenOnly(otherConfigs int64) {
	if otherConfigs == 0 {
		g.IsDefault = true
	}
}

// IsKnownGateway reports whether the name is part of the supported
// gateway vocabulary.
func IsKnownGateway(name string) bool {
	switch name {
	case GatewayStripe, GatewayPayPal, GatewayRazorpay:
		return true
	default:
		return false
	}
}
