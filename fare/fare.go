package fare

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNoRate = errors.New("no fare rate in effect")

// Rate is a per-minute price that applies from EffectiveFrom until
// superseded by a later rate.
type Rate struct {
	EffectiveFrom time.Time       `db:"effective_from"`
	PerMinute     decimal.Decimal `db:"rate_per_minute"`
}

// Schedule holds the versioned rate history. Sessions are priced with the
// rate in effect at their end time, so completed sessions stay auditable
// after a rate change.
type Schedule struct {
	rates []Rate
}

func NewSchedule(rates []Rate) *Schedule {
	sorted := make([]Rate, len(rates))
	copy(sorted, rates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom.Before(sorted[j].EffectiveFrom)
	})
	return &Schedule{rates: sorted}
}

// RateAt returns the per-minute rate in effect at t.
func (s *Schedule) RateAt(t time.Time) (decimal.Decimal, error) {
	var found *Rate
	for i := range s.rates {
		if s.rates[i].EffectiveFrom.After(t) {
			break
		}
		found = &s.rates[i]
	}
	if found == nil {
		return decimal.Decimal{}, ErrNoRate
	}
	return found.PerMinute, nil
}

// BillableMinutes converts an interval to whole billable minutes: the
// duration in seconds divided by 60 and rounded up, with a floor of one
// minute. A session ending in the same minute it started still bills one.
func BillableMinutes(start, end time.Time) int64 {
	secs := int64(end.Sub(start) / time.Second)
	mins := (secs + 59) / 60
	if mins < 1 {
		mins = 1
	}
	return mins
}

// Fare prices the interval [start, end] at the rate in effect at end.
// Pure and deterministic; all arithmetic is decimal.
func (s *Schedule) Fare(start, end time.Time) (decimal.Decimal, error) {
	rate, err := s.RateAt(end)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return rate.Mul(decimal.NewFromInt(BillableMinutes(start, end))), nil
}
