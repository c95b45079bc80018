package repository

import (
	"gorm.io/gorm"

	"github.com/billmate/billmate/app/models"
)

// expenseRepository implements ExpenseRepository using GORM
type expenseRepository struct {
	db *gorm.DB
}

// NewExpenseRepository creates a new expense repository instance
func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(expense *models.Expense) error {
	return r.db.Create(expense).Error
}

func (r *expenseRepository) GetByID(id string, userID uint) (*models.Expense, error) {
	var expense models.Expense
	err := r.db.
		Preload("Category").
		Where("id = ? AND user_id = ?", id, userID).
		First(&expense).Error
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepository) GetByUserID(userID uint, categoryID *uint, offset, limit int) ([]models.Expense, int64, error) {
	base := r.db.Model(&models.Expense{}).Where("user_id = ?", userID)
	if categoryID != nil {
		base = base.Where("category_id = ?", *categoryID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var expenses []models.Expense
	err := base.
		Preload("Category").
		Order("date DESC, created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&expenses).Error
	return expenses, total, err
}

func (r *expenseRepository) Update(expense *models.Expense) error {
	return r.db.Save(expense).Error
}

func (r *expenseRepository) Delete(id string, userID uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Expense{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *expenseRepository) CreateCategory(category *models.ExpenseCategory) error {
	return r.db.Create(category).Error
}

func (r *expenseRepository) GetCategories(userID uint) ([]models.ExpenseCategory, error) {
	var categories []models.ExpenseCategory
	err := r.db.
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&categories).Error
	return categories, err
}

func (r *expenseRepository) DeleteCategory(id uint, userID uint) error {
	result := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.ExpenseCategory{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
