// Package service holds the business rules of the FRA Atlas API. Handlers
// translate HTTP into service calls; services talk to repositories, storage
// and upstream providers and return *models.AppError on failure.
package service

import (
	"errors"

	"fraatlas/internal/models"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID uint
	Role   models.Role
}

// OwnerScope returns the owner filter for claim reads: nil for roles that may
// read every claim, the caller's own id otherwise.
func (a Actor) OwnerScope() *uint {
	if a.Role.CanReadAllClaims() {
		return nil
	}
	id := a.UserID
	return &id
}

func isNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}

func isAppError(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr)
}

// asAppError keeps application errors as they are and wraps anything else
// as an internal error.
func asAppError(err error) error {
	if err == nil || isAppError(err) {
		return err
	}
	return models.NewInternalError(err)
}
