package apperr

import "errors"

var (
	ErrNoCredential      = errors.New("no credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrNotAMember        = errors.New("not a member of conversation")
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("persistence failure")
	ErrTransport         = errors.New("transport failure")
)
