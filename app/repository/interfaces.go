package repository

import (
	"time"

	"github.com/billmate/billmate/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	GetSettings(userID uint) (*models.UserSettings, error)
	SaveSettings(settings *models.UserSettings) error
	Update(user *models.User) error
	Delete(id uint) error
	Count() (int64, error)
}

// ClientRepository defines the interface for client-related database operations
type ClientRepository interface {
	Create(client *models.Client) error
	GetByID(id string, userID uint) (*models.Client, error)
	GetByUserID(userID uint, offset, limit int) ([]models.Client, error)
	Update(client *models.Client) error
	Delete(id string, userID uint) error
	CountByUserID(userID uint) (int64, error)
	Search(userID uint, query string) ([]models.Client, error)
}

// InvoiceRepository defines the interface for invoice-related database operations
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByID(id string) (*models.Invoice, error)
	GetOwned(id string, userID uint) (*models.Invoice, error)
	GetByUserID(userID uint, status string, offset, limit int) ([]models.Invoice, int64, error)
	Update(invoice *models.Invoice) error
	ReplaceItems(invoice *models.Invoice, items []models.InvoiceItem) error
	Delete(id string, userID uint) error
	CountByUserID(userID uint) (int64, error)
	MarkOverdue(asOf time.Time) (int64, error)
}

// ExpenseRepository defines the interface for expense-related database operations
type ExpenseRepository interface {
	Create(expense *models.Expense) error
	GetByID(id string, userID uint) (*models.Expense, error)
	GetByUserID(userID uint, categoryID *uint, offset, limit int) ([]models.Expense, int64, error)
	Update(expense *models.Expense) error
	Delete(id string, userID uint) error

	CreateCategory(category *models.ExpenseCategory) error
	GetCategories(userID uint) ([]models.ExpenseCategory, error)
	DeleteCategory(id uint, userID uint) error
}

// SubscriptionRepository defines the interface for plan and subscription operations
type SubscriptionRepository interface {
	GetPlanByName(name string) (*models.Plan, error)
	GetActivePlans() ([]models.Plan, error)
	GetActiveForUser(userID uint) (*models.Subscription, error)
	Create(sub *models.Subscription) error
	Update(sub *models.Subscription) error
	ExpireOutdated(asOf time.Time) (int64, error)
	TrackUsage(userID uint, subscriptionID string, date time.Time, metric string) error
}
