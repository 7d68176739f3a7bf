package repository

import "time"

// ProfileOption configures a ProfileStore.
type ProfileOption func(*ProfileStore)

// WithProfileClock overrides the time source for settle timestamps.
func WithProfileClock(now func() time.Time) ProfileOption {
	return func(s *ProfileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithPageLimits sets the default and maximum history page sizes.
func WithPageLimits(defaultLimit, maxLimit int) LedgerOption {
	return func(l *Ledger) {
		if defaultLimit > 0 {
			l.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			l.maxLimit = maxLimit
		}
		if l.defaultLimit > l.maxLimit {
			l.defaultLimit = l.maxLimit
		}
	}
}

// WeightOption configures a WeightStore.
type WeightOption func(*WeightStore)

// WithCacheTTL bounds how long resolved weights are served from memory.
// Zero keeps them until the next Set.
func WithCacheTTL(ttl time.Duration) WeightOption {
	return func(w *WeightStore) {
		if ttl >= 0 {
			w.ttl = ttl
		}
	}
}

// WithWeightClock overrides the time source for cache expiry.
func WithWeightClock(now func() time.Time) WeightOption {
	return func(w *WeightStore) {
		if now != nil {
			w.now = now
		}
	}
}
