package repository

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrAlreadyExists     = errors.New("record already exists")
	ErrOpenSessionExists = errors.New("open session already exists for plate")
	ErrSessionNotOpen    = errors.New("session is not open")
)
