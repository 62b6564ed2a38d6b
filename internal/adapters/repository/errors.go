package repository

import "errors"

// Sentinel kinds for brand store errors.
var (
	ErrNotFound     = errors.New("brand not found")
	ErrInvalidBrand = errors.New("invalid brand")
	ErrStorage      = errors.New("brand storage failed")
)
