package payment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
)

// fakeRepo is an in-memory Repository used by the package tests. It
// mirrors the transactional semantics of the GORM implementation
// (create-if-not-exists keyed on event ID, completion stamping).
type fakeRepo struct {
	payments map[string]*models.InvoicePayment
	events   map[string]*models.PaymentWebhookEvent
	configs  []models.GatewayConfig
	invoices map[string]*models.Invoice
	settings map[uint]*models.UserSettings
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		payments: map[string]*models.InvoicePayment{},
		events:   map[string]*models.PaymentWebhookEvent{},
		invoices: map[string]*models.Invoice{},
		settings: map[uint]*models.UserSettings{},
	}
}

func (f *fakeRepo) addInvoice(inv *models.Invoice) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceStatusUnpaid
	}
	f.invoices[inv.ID] = inv
}

func (f *fakeRepo) CreatePayment(p *models.InvoicePayment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Metadata == nil {
		p.Metadata = models.MetadataMap{}
	}
	p.CreatedAt = time.Now()
	f.payments[p.ID] = p
	return nil
}

func (f *fakeRepo) SavePayment(p *models.InvoicePayment) error {
	f.payments[p.ID] = p
	return nil
}

func (f *fakeRepo) GetPayment(id string) (*models.InvoicePayment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakeRepo) FindPaymentBySessionID(sessionID string) (*models.InvoicePayment, error) {
	for _, p := range f.payments {
		if p.GatewaySessionID != nil && *p.GatewaySessionID == sessionID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindPaymentByProviderPaymentID(providerPaymentID string) (*models.InvoicePayment, error) {
	for _, p := range f.payments {
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID == providerPaymentID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) FindPaymentByMetadata(key, value string) (*models.InvoicePayment, error) {
	for _, p := range f.payments {
		if p.Metadata[key] == value {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListPaymentsByInvoice(invoiceID string) ([]models.InvoicePayment, error) {
	var out []models.InvoicePayment
	for _, p := range f.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListPaymentsByOwner(userID uint, offset, limit int) ([]models.InvoicePayment, int64, error) {
	var out []models.InvoicePayment
	for _, p := range f.payments {
		if inv, ok := f.invoices[p.InvoiceID]; ok && inv.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeRepo) LatestPaymentForInvoice(invoiceID string) (*models.InvoicePayment, error) {
	var latest *models.InvoicePayment
	for _, p := range f.payments {
		if p.InvoiceID != invoiceID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (f *fakeRepo) CompletePayment(p *models.InvoicePayment) error {
	p.Status = models.PaymentStatusCompleted
	p.StampCompleted(time.Now())
	f.payments[p.ID] = p
	if inv, ok := f.invoices[p.InvoiceID]; ok {
		inv.Status = models.InvoiceStatusPaid
	}
	return nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(ev *models.PaymentWebhookEvent) (bool, error) {
	if _, ok := f.events[ev.EventID]; ok {
		return false, nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	f.events[ev.EventID] = ev
	return true, nil
}

func (f *fakeRepo) WebhookEventExists(eventID string) (bool, error) {
	_, ok := f.events[eventID]
	return ok, nil
}

func (f *fakeRepo) MarkWebhookProcessed(ev *models.PaymentWebhookEvent, paymentID *string) error {
	ev.PaymentID = paymentID
	ev.MarkProcessed(time.Now())
	f.events[ev.EventID] = ev
	return nil
}

func (f *fakeRepo) GetGatewayConfig(id string) (*models.GatewayConfig, error) {
	for i := range f.configs {
		if f.configs[i].ID == id {
			return &f.configs[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) ListActiveConfigsForUser(userID uint) ([]models.GatewayConfig, error) {
	var out []models.GatewayConfig
	for _, cfg := range f.configs {
		if cfg.UserID == userID && cfg.IsActive {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetDefaultConfigForUser(userID uint) (*models.GatewayConfig, error) {
	for i := range f.configs {
		cfg := f.configs[i]
		if cfg.UserID == userID && cfg.IsActive && cfg.IsDefault {
			return &cfg, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) GetInvoice(id string) (*models.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return inv, nil
}

func (f *fakeRepo) GetUserSettings(userID uint) (*models.UserSettings, error) {
	us, ok := f.settings[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return us, nil
}

func strPtr(s string) *string {
	return &s
}
