package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidRole     = errors.New("invalid role")
	ErrLastAdmin       = errors.New("cannot remove the last admin")
	ErrScanInProgress  = errors.New("a scan is already running for this datasource")
	ErrScanNotTerminal = errors.New("scan has not finished")
)
