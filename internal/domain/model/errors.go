package model

import "errors"

// Sentinel error kinds shared by every layer. Match them with errors.Is.
var (
	ErrNotFound             = errors.New("profile not found")
	ErrCollectorUnavailable = errors.New("signal source unavailable")
	ErrInvalidWeightConfig  = errors.New("invalid weight config")
	ErrConcurrentUpdate     = errors.New("concurrent reputation update")
	ErrInvalidReason        = errors.New("invalid recalculation reason")
	ErrLedgerImmutable      = errors.New("reputation ledger is append-only")
	ErrBrokenChain          = errors.New("reputation ledger chain broken")
	ErrInvalidPage          = errors.New("invalid page")
)
