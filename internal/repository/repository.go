package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"qwery/internal/apperr"
)

// wrapWriteErr turns unique-index violations into a 409 domain error and
// wraps everything else with the failed operation.
func wrapWriteErr(op, entity string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict(fmt.Sprintf("%s already exists", entity))
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperr.BadRequest(fmt.Sprintf("%s references a missing record", entity))
	}
	return fmt.Errorf("%s %s failed: %w", op, entity, err)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
