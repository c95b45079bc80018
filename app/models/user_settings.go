package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// UserSettings stores per-user preferences: billing currency, platform
// gateway opt-in, plan info and API key material.
type UserSettings struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	UserID               uint           `gorm:"uniqueIndex" json:"user_id"`
	Plan                 string         `gorm:"type:varchar(50);default:'free'" json:"plan"`
	Currency             string         `gorm:"type:varchar(3);default:''" json:"currency"`
	AllowPlatformGateway bool           `gorm:"default:false" json:"allow_platform_gateway"`
	APIKeyHash           string         `gorm:"type:char(64);default:''" json:"-"`
	APIKeyPrefix         string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt      *time.Time     `json:"api_key_created_at"`
	APIKeyLastUsedAt     *time.Time     `json:"api_key_last_used_at"`
	APIKeyRevokedAt      *time.Time     `json:"api_key_revoked_at"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "bm_"

// GetOrCreateUserSettings returns existing settings or creates defaults
func GetOrCreateUserSettings(db *gorm.DB, userID uint) (*UserSettings, error) {
	var us UserSettings
	if err := db.Where("user_id = ?", userID).First(&us).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			us = UserSettings{UserID: userID, Plan: "free"}
			if err := db.Create(&us).Error; err != nil {
				return nil, err
			}
			return &us, nil
		}
		return nil, err
	}
	return &us, nil
}

// HasActiveAPIKey reports whether the user has an active API key configured
func (us *UserSettings) HasActiveAPIKey() bool {
	return us != nil && us.APIKeyHash != "" && us.APIKeyRevokedAt == nil
}

// IssueAPIKey generates a new API key, persists metadata on the struct, and returns the raw secret.
// Callers must persist the struct via the database after invoking this method.
func (us *UserSettings) IssueAPIKey() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(raw))

	us.APIKeyHash = HashAPIKey(secret)
	us.APIKeyPrefix = apiKeyDisplayPrefix(secret)
	now := time.Now()
	us.APIKeyCreatedAt = &now
	us.APIKeyLastUsedAt = nil
	us.APIKeyRevokedAt = nil

	return secret, nil
}

// RevokeAPIKey clears the active API key material
func (us *UserSettings) RevokeAPIKey() {
	us.APIKeyHash = ""
	us.APIKeyPrefix = ""
	now := time.Now()
	us.APIKeyRevokedAt = &now
}

// HashAPIKey returns the hex encoded SHA-256 of a raw API key
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func apiKeyDisplayPrefix(secret string) string {
	if len(secret) <= 10 {
		return secret
	}
	return fmt.Sprintf("%s...", secret[:10])
}
