package payment

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/billmate/billmate/app/models"
)

// Repository persists payment records, webhook events and the gateway
// configuration lookups the payment core needs.
type Repository interface {
	CreatePayment(p *models.InvoicePayment) error
	SavePayment(p *models.InvoicePayment) error
	GetPayment(id string) (*models.InvoicePayment, error)
	FindPaymentBySessionID(sessionID string) (*models.InvoicePayment, error)
	FindPaymentByProviderPaymentID(providerPaymentID string) (*models.InvoicePayment, error)
	FindPaymentByMetadata(key, value string) (*models.InvoicePayment, error)
	ListPaymentsByInvoice(invoiceID string) ([]models.InvoicePayment, error)
	ListPaymentsByOwner(userID uint, offset, limit int) ([]models.InvoicePayment, int64, error)
	LatestPaymentForInvoice(invoiceID string) (*models.InvoicePayment, error)

	// CompletePayment marks the payment completed, stamps the payment
	// date if not already set and flips the invoice to paid, all in one
	// transaction.
	CompletePayment(p *models.InvoicePayment) error

	// CreateWebhookEventIfNotExists inserts the event unless one with
	// the same provider event ID already exists. It reports whether the
	// row was created by this call.
	CreateWebhookEventIfNotExists(ev *models.PaymentWebhookEvent) (bool, error)
	WebhookEventExists(eventID string) (bool, error)
	MarkWebhookProcessed(ev *models.PaymentWebhookEvent, paymentID *string) error

	GetGatewayConfig(id string) (*models.GatewayConfig, error)
	ListActiveConfigsForUser(userID uint) ([]models.GatewayConfig, error)
	GetDefaultConfigForUser(userID uint) (*models.GatewayConfig, error)

	GetInvoice(id string) (*models.Invoice, error)
	GetUserSettings(userID uint) (*models.UserSettings, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a Repository backed by the given database.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreatePayment(p *models.InvoicePayment) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) SavePayment(p *models.InvoicePayment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) GetPayment(id string) (*models.InvoicePayment, error) {
	var p models.InvoicePayment
	if err := r.db.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindPaymentBySessionID(sessionID string) (*models.InvoicePayment, error) {
	var p models.InvoicePayment
	if err := r.db.First(&p, "gateway_session_id = ?", sessionID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindPaymentByProviderPaymentID(providerPaymentID string) (*models.InvoicePayment, error) {
	var p models.InvoicePayment
	if err := r.db.First(&p, "gateway_payment_id = ?", providerPaymentID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindPaymentByMetadata(key, value string) (*models.InvoicePayment, error) {
	var p models.InvoicePayment
	err := r.db.
		Where("metadata LIKE ?", "%"+`"`+key+`":"`+value+`"`+"%").
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ListPaymentsByInvoice(invoiceID string) ([]models.InvoicePayment, error) {
	var payments []models.InvoicePayment
	err := r.db.
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (r *gormRepository) ListPaymentsByOwner(userID uint, offset, limit int) ([]models.InvoicePayment, int64, error) {
	base := r.db.Model(&models.InvoicePayment{}).
		Joins("JOIN invoices ON invoices.id = invoice_payments.invoice_id").
		Where("invoices.user_id = ?", userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var payments []models.InvoicePayment
	err := base.
		Order("invoice_payments.created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&payments).Error
	return payments, total, err
}

func (r *gormRepository) LatestPaymentForInvoice(invoiceID string) (*models.InvoicePayment, error) {
	var p models.InvoicePayment
	err := r.db.
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) CompletePayment(p *models.InvoicePayment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		p.Status = models.PaymentStatusCompleted
		p.StampCompleted(time.Now())
		if err := tx.Save(p).Error; err != nil {
			return err
		}
		return tx.Model(&models.Invoice{}).
			Where("id = ?", p.InvoiceID).
			Update("status", models.InvoiceStatusPaid).Error
	})
}

// CreateWebhookEventIfNotExists relies on the unique index on event_id:
// a conflicting insert is silently dropped, so RowsAffected tells us
// whether this delivery won the race.
func (r *gormRepository) CreateWebhookEventIfNotExists(ev *models.PaymentWebhookEvent) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(ev)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *gormRepository) WebhookEventExists(eventID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.PaymentWebhookEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormRepository) MarkWebhookProcessed(ev *models.PaymentWebhookEvent, paymentID *string) error {
	ev.PaymentID = paymentID
	ev.MarkProcessed(time.Now())
	return r.db.Save(ev).Error
}

func (r *gormRepository) GetGatewayConfig(id string) (*models.GatewayConfig, error) {
	var cfg models.GatewayConfig
	if err := r.db.First(&cfg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *gormRepository) ListActiveConfigsForUser(userID uint) ([]models.GatewayConfig, error) {
	var configs []models.GatewayConfig
	err := r.db.
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at ASC").
		Find(&configs).Error
	return configs, err
}

func (r *gormRepository) GetDefaultConfigForUser(userID uint) (*models.GatewayConfig, error) {
	var cfg models.GatewayConfig
	err := r.db.
		Where("user_id = ? AND is_active = ? AND is_default = ?", userID, true, true).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *gormRepository) GetInvoice(id string) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.Preload("Items").First(&inv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) GetUserSettings(userID uint) (*models.UserSettings, error) {
	var us models.UserSettings
	if err := r.db.Where("user_id = ?", userID).First(&us).Error; err != nil {
		return nil, err
	}
	return &us, nil
}
