package index

import "errors"

// ErrNotReady indicates the index is missing, corrupt, or empty. Searches
// fail closed with this error instead of guessing on partial data.
var ErrNotReady = errors.New("visual index not ready")

// ErrVectorLengthMismatch indicates a query vector does not match the index
// dimension.
var ErrVectorLengthMismatch = errors.New("vector length mismatch")

// ErrDishNotFound indicates a label lookup matched no indexed dish.
var ErrDishNotFound = errors.New("dish not found")
