package apperrors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrExpired            = errors.New("token expired")
	ErrEmailMismatch      = errors.New("invitation is bound to a different email")
	ErrConflict           = errors.New("conflict")
	ErrSchemaDrift        = errors.New("schema drift unrepairable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidPermission  = errors.New("invalid permission")
)
