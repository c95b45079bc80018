package repository

import (
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/billmate/billmate/app/models"
)

// subscriptionRepository implements SubscriptionRepository using GORM
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetPlanByName(name string) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.Where("name = ? AND is_active = ?", name, true).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *subscriptionRepository) GetActivePlans() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.
		Where("is_active = ?", true).
		Order("price ASC").
		Find(&plans).Error
	return plans, err
}

func (r *subscriptionRepository) GetActiveForUser(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.
		Preload("Plan").
		Where("user_id = ? AND status IN ?", userID, []string{models.SubscriptionStatusActive, models.SubscriptionStatusTrial}).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

// ExpireOutdated flips subscriptions past their end date to expired.
func (r *subscriptionRepository) ExpireOutdated(asOf time.Time) (int64, error) {
	result := r.db.Model(&models.Subscription{}).
		Where("status IN ? AND end_date IS NOT NULL AND end_date < ?",
			[]string{models.SubscriptionStatusActive, models.SubscriptionStatusTrial}, asOf).
		Update("status", models.SubscriptionStatusExpired)
	return result.RowsAffected, result.Error
}

// TrackUsage increments a daily usage metric. The (user, date) unique
// index keeps one row per user per day; concurrent first writes fall
// back to updating the surviving row.
func (r *subscriptionRepository) TrackUsage(userID uint, subscriptionID string, date time.Time, metric string) error {
	day := date.Truncate(24 * time.Hour)

	return r.db.Transaction(func(tx *gorm.DB) error {
		tracker := models.UsageTracker{
			SubscriptionID: subscriptionID,
			UserID:         userID,
			Date:           day,
			Metrics:        models.MetadataMap{metric: "1"},
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&tracker)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		var existing models.UsageTracker
		if err := tx.Where("user_id = ? AND date = ?", userID, day).First(&existing).Error; err != nil {
			return err
		}
		count, _ := strconv.Atoi(existing.Metrics[metric])
		if existing.Metrics == nil {
			existing.Metrics = models.MetadataMap{}
		}
		existing.Metrics[metric] = strconv.Itoa(count + 1)
		return tx.Save(&existing).Error
	})
}
