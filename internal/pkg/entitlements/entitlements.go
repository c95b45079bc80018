package entitlements

import (
	"strings"

	"github.com/billmate/billmate/app/models"
)

type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
	PlanTrial    Plan = "trial"
)

// InvoiceLimit returns the number of invoices a plan may create. A
// negative value means unlimited.
func InvoiceLimit(plan Plan) int {
	switch plan {
	case PlanBusiness:
		return -1
	case PlanPro:
		return 100
	case PlanTrial:
		return 10
	default:
		return 3
	}
}

// AllowsPaymentCollection reports whether the plan may collect payments
// through configured gateways.
func AllowsPaymentCollection(plan Plan) bool {
	switch plan {
	case PlanPro, PlanBusiness, PlanTrial:
		return true
	default:
		return false
	}
}

// AllowsAnalytics reports whether the plan has access to the analytics
// dashboard endpoints.
func AllowsAnalytics(plan Plan) bool {
	return plan == PlanPro || plan == PlanBusiness
}

// EffectivePlan normalizes a stored plan string, falling back to free.
func EffectivePlan(raw string) Plan {
	switch Plan(strings.ToLower(strings.TrimSpace(raw))) {
	case PlanPro:
		return PlanPro
	case PlanBusiness:
		return PlanBusiness
	case PlanTrial:
		return PlanTrial
	default:
		return PlanFree
	}
}

// CanCreateInvoice combines the plan limit with the user's current
// invoice count.
func CanCreateInvoice(us *models.UserSettings, invoiceCount int64) bool {
	limit := InvoiceLimit(EffectivePlan(us.Plan))
	if limit < 0 {
		return true
	}
	return invoiceCount < int64(limit)
}
