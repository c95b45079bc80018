package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecalculateTotals(t *testing.T) {
	inv := &Invoice{
		TaxRate: 10,
		Items: []InvoiceItem{
			{Description: "Design work", Quantity: 2, UnitPrice: 100},
			{Description: "Hosting", Quantity: 1, UnitPrice: 50},
		},
	}

	inv.RecalculateTotals()

	assert.Equal(t, 200.0, inv.Items[0].Amount)
	assert.Equal(t, 50.0, inv.Items[1].Amount)
	assert.Equal(t, 250.0, inv.Subtotal)
	assert.Equal(t, 25.0, inv.TaxAmount)
	assert.Equal(t, 275.0, inv.Total)
}

func TestRecalculateTotalsNoItems(t *testing.T) {
	inv := &Invoice{TaxRate: 19, Subtotal: 100, TaxAmount: 19, Total: 119}

	inv.RecalculateTotals()

	assert.Equal(t, 0.0, inv.Subtotal)
	assert.Equal(t, 0.0, inv.TaxAmount)
	assert.Equal(t, 0.0, inv.Total)
}

func TestRecalculateTotalsZeroTaxRate(t *testing.T) {
	inv := &Invoice{
		Items: []InvoiceItem{{Quantity: 3, UnitPrice: 33.33}},
	}

	inv.RecalculateTotals()

	assert.InDelta(t, 99.99, inv.Subtotal, 0.0001)
	assert.Equal(t, 0.0, inv.TaxAmount)
	assert.InDelta(t, 99.99, inv.Total, 0.0001)
}

func TestInvoiceIsPaid(t *testing.T) {
	assert.False(t, (&Invoice{Status: InvoiceStatusUnpaid}).IsPaid())
	assert.False(t, (&Invoice{Status: InvoiceStatusOverdue}).IsPaid())
	assert.True(t, (&Invoice{Status: InvoiceStatusPaid}).IsPaid())
}
