package statistics

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/billmate/billmate/app/models"
	"github.com/billmate/billmate/internal/pkg/cache"
	"github.com/billmate/billmate/internal/pkg/database"
)

const (
	CacheKeySummary = "statistics:summary:%d"         // Format with user ID
	CacheKeyMonthly = "statistics:monthly:%d:%d"      // Format with user ID, month count
	CacheExpiration = 10 * time.Minute
)

// Summary holds the dashboard aggregates for one user.
type Summary struct {
	TotalRevenue  float64 `json:"total_revenue"`
	Outstanding   float64 `json:"outstanding"`
	TotalExpenses float64 `json:"total_expenses"`
	Profit        float64 `json:"profit"`
	InvoiceCount  int64   `json:"invoice_count"`
	PaidCount     int64   `json:"paid_count"`
	UnpaidCount   int64   `json:"unpaid_count"`
	OverdueCount  int64   `json:"overdue_count"`
	ClientCount   int64   `json:"client_count"`
}

// MonthlyEntry is one month of revenue vs. expenses.
type MonthlyEntry struct {
	Month    string  `json:"month"` // YYYY-MM
	Revenue  float64 `json:"revenue"`
	Expenses float64 `json:"expenses"`
}

// GetSummary returns the user's dashboard summary from cache or database.
func GetSummary(userID uint) (*Summary, error) {
	key := fmt.Sprintf(CacheKeySummary, userID)
	if val, err := cache.Get(key); err == nil {
		var s Summary
		if json.Unmarshal([]byte(val), &s) == nil {
			return &s, nil
		}
	}

	s, err := computeSummary(userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(s); err == nil {
		if err := cache.Set(key, string(data), CacheExpiration); err != nil {
			log.Printf("Error caching summary for user %d: %v", userID, err)
		}
	}
	return s, nil
}

func computeSummary(userID uint) (*Summary, error) {
	db := database.GetDB()
	s := &Summary{}

	type totalRow struct {
		Status string
		Count  int64
		Sum    float64
	}
	var rows []totalRow
	err := db.Model(&models.Invoice{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total), 0) AS sum").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		s.InvoiceCount += row.Count
		switch row.Status {
		case models.InvoiceStatusPaid:
			s.PaidCount = row.Count
			s.TotalRevenue = row.Sum
		case models.InvoiceStatusUnpaid:
			s.UnpaidCount = row.Count
			s.Outstanding += row.Sum
		case models.InvoiceStatusOverdue:
			s.OverdueCount = row.Count
			s.Outstanding += row.Sum
		}
	}

	err = db.Model(&models.Expense{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&s.TotalExpenses).Error
	if err != nil {
		return nil, err
	}

	err = db.Model(&models.Client{}).
		Where("user_id = ?", userID).
		Count(&s.ClientCount).Error
	if err != nil {
		return nil, err
	}

	s.Profit = s.TotalRevenue - s.TotalExpenses
	return s, nil
}

// GetRevenueExpenses returns month-by-month revenue and expenses for
// the trailing window, oldest first. Months without activity are
// included with zero values.
func GetRevenueExpenses(userID uint, months int) ([]MonthlyEntry, error) {
	if months <= 0 || months > 36 {
		months = 12
	}

	key := fmt.Sprintf(CacheKeyMonthly, userID, months)
	if val, err := cache.Get(key); err == nil {
		var entries []MonthlyEntry
		if json.Unmarshal([]byte(val), &entries) == nil {
			return entries, nil
		}
	}

	entries, err := computeRevenueExpenses(userID, months)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(entries); err == nil {
		if err := cache.Set(key, string(data), CacheExpiration); err != nil {
			log.Printf("Error caching monthly stats for user %d: %v", userID, err)
		}
	}
	return entries, nil
}

func computeRevenueExpenses(userID uint, months int) ([]MonthlyEntry, error) {
	db := database.GetDB()
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	type monthRow struct {
		Month string
		Sum   float64
	}

	var revenueRows []monthRow
	err := db.Model(&models.Invoice{}).
		Select("DATE_FORMAT(issue_date, '%Y-%m') AS month, COALESCE(SUM(total), 0) AS sum").
		Where("user_id = ? AND status = ? AND issue_date >= ?", userID, models.InvoiceStatusPaid, start).
		Group("month").
		Scan(&revenueRows).Error
	if err != nil {
		return nil, err
	}

	var expenseRows []monthRow
	err = db.Model(&models.Expense{}).
		Select("DATE_FORMAT(date, '%Y-%m') AS month, COALESCE(SUM(amount), 0) AS sum").
		Where("user_id = ? AND date >= ?", userID, start).
		Group("month").
		Scan(&expenseRows).Error
	if err != nil {
		return nil, err
	}

	revenue := make(map[string]float64, len(revenueRows))
	for _, row := range revenueRows {
		revenue[row.Month] = row.Sum
	}
	expenses := make(map[string]float64, len(expenseRows))
	for _, row := range expenseRows {
		expenses[row.Month] = row.Sum
	}

	entries := make([]MonthlyEntry, 0, months)
	for i := 0; i < months; i++ {
		month := start.AddDate(0, i, 0).Format("2006-01")
		entries = append(entries, MonthlyEntry{
			Month:    month,
			Revenue:  revenue[month],
			Expenses: expenses[month],
		})
	}
	return entries, nil
}

// InvalidateUser drops the cached aggregates after a write that
// changes them (invoice, payment or expense mutations).
func InvalidateUser(userID uint) {
	if err := cache.Delete(fmt.Sprintf(CacheKeySummary, userID)); err != nil {
		log.Printf("Error invalidating summary cache for user %d: %v", userID, err)
	}
	for _, months := range []int{6, 12, 24, 36} {
		if err := cache.Delete(fmt.Sprintf(CacheKeyMonthly, userID, months)); err != nil {
			log.Printf("Error invalidating monthly cache for user %d: %v", userID, err)
		}
	}
}
