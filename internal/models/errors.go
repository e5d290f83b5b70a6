package models

import "errors"

// Sentinel errors shared by the backend layers and recognised by the client.
var (
	ErrNotFound           = errors.New("not found")
	ErrDefectLocked       = errors.New("defect is completed and cannot be changed")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrUserExists         = errors.New("user already registered")
	ErrInvalidToken       = errors.New("token is invalid or has expired")
	ErrObjectExists       = errors.New("object already exists")
	ErrInvalidInput       = errors.New("invalid input")
)
