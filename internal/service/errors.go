package service

import (
	"errors"
	"fmt"

	"victim-support/backend/internal/models"
	"victim-support/backend/internal/repository"
)

// Failure categories surfaced to callers. Wrapped errors carry the detail.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrValidationFailed  = errors.New("validation failed")
	ErrIngestFailed      = errors.New("ingest failed")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrUnauthorized      = errors.New("not a participant of this room")
)

// classify maps model and repository errors onto the service categories
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrIngestFailed), errors.Is(err, ErrPersistenceFailed),
		errors.Is(err, ErrUnauthorized):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrRoomNotFound)
	case errors.Is(err, models.ErrInvalidIdentity), errors.Is(err, models.ErrInvalidCounterpart),
		errors.Is(err, models.ErrInvalidMessage):
		return fmt.Errorf("%s: %w: %v", op, ErrValidationFailed, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrPersistenceFailed, err)
}
