package receipts

import (
	"errors"
	"fmt"
	"time"

	"github.com/billmate/billmate/internal/pkg/env"
)

// Config holds receipt storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads receipt storage configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("RECEIPT_STORAGE_ENABLED", "false") == "true",
	}

	// Validate required fields if receipt storage is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when receipt storage is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when receipt storage is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when receipt storage is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if receipt storage is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey generates a standardized object key for an expense receipt.
// Format: receipts/<user>/YYYY/MM/<expense-id><ext>
func (c *Config) ObjectKey(userID uint, expenseID, fileExtension string, at time.Time) string {
	return fmt.Sprintf("receipts/%d/%04d/%02d/%s%s", userID, at.Year(), int(at.Month()), expenseID, fileExtension)
}
