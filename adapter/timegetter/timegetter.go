// Package timegetter contains the default [domain.TimeGetter] implementation.
package timegetter

import (
	"time"

	"github.com/vinicius-lino-figueiredo/gedm/domain"
)

// TimeGetter implements [domain.TimeGetter]. Times are returned in UTC with
// millisecond precision, which is what a stored date can hold.
type TimeGetter struct{}

// NewTimeGetter returns a new implementation of domain.TimeGetter.
func NewTimeGetter() domain.TimeGetter {
	return &TimeGetter{}
}

// GetTime implements [domain.TimeGetter].
func (t *TimeGetter) GetTime() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Fixed is a [domain.TimeGetter] that always returns the same time.
type Fixed time.Time

// GetTime implements [domain.TimeGetter].
func (f Fixed) GetTime() time.Time {
	return time.Time(f)
}
