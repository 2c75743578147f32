package repository

import (
	"errors"

	"gorm.io/gorm"
)

// findOne runs q.First and maps a missing row to (nil, nil)
func findOne[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}
