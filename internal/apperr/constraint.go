package apperr

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var constraintMarkers = []string{
	"unique constraint failed",
	"foreign key constraint failed",
	"primary key must be unique",
	"duplicate key value violates unique constraint",
	"violates foreign key constraint",
	"sqlstate 23505",
	"sqlstate 23503",
}

// IsConstraintViolation reports whether a store error was raised by a
// uniqueness, primary key or foreign key constraint. It understands gorm's
// translated errors as well as raw sqlite and postgres driver messages.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	message := strings.ToLower(err.Error())
	for _, marker := range constraintMarkers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

// MarkConstraint tags constraint failures with ErrConstraintViolation and
// returns other errors unchanged.
func MarkConstraint(err error) error {
	if err == nil || errors.Is(err, ErrConstraintViolation) || !IsConstraintViolation(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
}
