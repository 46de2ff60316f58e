package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("already exists")
	ErrUnauthorized = errors.New("unauthorized")
	ErrPersistence  = errors.New("persistence failure")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// storeErr maps a repository error onto the service taxonomy.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	// a referenced row vanished between lookup and write
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return fmt.Errorf("%w: referenced record no longer exists", ErrNotFound)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
