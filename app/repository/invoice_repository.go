package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
)

// invoiceRepository implements InvoiceRepository using GORM
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

func (r *invoiceRepository) GetByID(id string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.
		Preload("Items").
		Preload("Client").
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetOwned(id string, userID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.
		Preload("Items").
		Preload("Client").
		Where("id = ? AND user_id = ?", id, userID).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetByUserID(userID uint, status string, offset, limit int) ([]models.Invoice, int64, error) {
	base := r.db.Model(&models.Invoice{}).Where("user_id = ?", userID)
	if status != "" {
		base = base.Where("status = ?", status)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []models.Invoice
	err := base.
		Preload("Items").
		Preload("Client").
		Order("issue_date DESC, created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepository) Update(invoice *models.Invoice) error {
	return r.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(invoice).Error
}

// ReplaceItems swaps the invoice's line items and persists the
// recalculated totals in one transaction.
func (r *invoiceRepository) ReplaceItems(invoice *models.Invoice, items []models.InvoiceItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ID = 0
			items[i].InvoiceID = invoice.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		invoice.Items = items
		invoice.RecalculateTotals()
		return tx.Model(&models.Invoice{}).
			Where("id = ?", invoice.ID).
			Updates(map[string]any{
				"subtotal":   invoice.Subtotal,
				"tax_amount": invoice.TaxAmount,
				"total":      invoice.Total,
			}).Error
	})
}

func (r *invoiceRepository) Delete(id string, userID uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Invoice{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *invoiceRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// MarkOverdue flips unpaid invoices past their due date to overdue and
// returns how many rows changed.
func (r *invoiceRepository) MarkOverdue(asOf time.Time) (int64, error) {
	result := r.db.Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceStatusUnpaid, asOf).
		Update("status", models.InvoiceStatusOverdue)
	return result.RowsAffected, result.Error
}
