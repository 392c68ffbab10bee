package fare

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func twoPerMinute() *Schedule {
	return NewSchedule([]Rate{
		{EffectiveFrom: epoch.Add(-24 * time.Hour), PerMinute: decimal.RequireFromString("2.00")},
	})
}

func TestBillableMinutes_MinimumOneMinute(t *testing.T) {
	assert.EqualValues(t, 1, BillableMinutes(epoch, epoch))
	assert.EqualValues(t, 1, BillableMinutes(epoch, epoch.Add(59*time.Second)))
	assert.EqualValues(t, 1, BillableMinutes(epoch, epoch.Add(60*time.Second)))
}

func TestBillableMinutes_RoundsUp(t *testing.T) {
	assert.EqualValues(t, 2, BillableMinutes(epoch, epoch.Add(61*time.Second)))
	assert.EqualValues(t, 3, BillableMinutes(epoch, epoch.Add(125*time.Second)))
	assert.EqualValues(t, 10, BillableMinutes(epoch, epoch.Add(10*time.Minute)))
}

func TestFare_ZeroAndSubMinuteChargeTheSame(t *testing.T) {
	s := twoPerMinute()

	zero, err := s.Fare(epoch, epoch)
	require.NoError(t, err)
	subMinute, err := s.Fare(epoch, epoch.Add(59*time.Second))
	require.NoError(t, err)

	assert.True(t, zero.Equal(subMinute))
	assert.Equal(t, "2.00", zero.StringFixed(2))
}

func TestFare_CeilingRule(t *testing.T) {
	s := twoPerMinute()

	amount, err := s.Fare(epoch, epoch.Add(61*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "4.00", amount.StringFixed(2))

	amount, err = s.Fare(epoch, epoch.Add(125*time.Second))
	require.NoError(t, err)
	assert.Equal(t, "6.00", amount.StringFixed(2))
}

func TestFare_UsesRateInEffectAtEndTime(t *testing.T) {
	s := NewSchedule([]Rate{
		{EffectiveFrom: epoch, PerMinute: decimal.RequireFromString("2.00")},
		{EffectiveFrom: epoch.Add(time.Hour), PerMinute: decimal.RequireFromString("2.50")},
	})

	before, err := s.Fare(epoch.Add(10*time.Minute), epoch.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "20.00", before.StringFixed(2))

	// Session ends after the rate change; the new rate prices it.
	after, err := s.Fare(epoch.Add(55*time.Minute), epoch.Add(65*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "25.00", after.StringFixed(2))
}

func TestFare_NoRateInEffect(t *testing.T) {
	s := NewSchedule([]Rate{{EffectiveFrom: epoch, PerMinute: decimal.RequireFromString("2.00")}})

	_, err := s.Fare(epoch.Add(-2*time.Hour), epoch.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrNoRate)
}

func TestFare_Deterministic(t *testing.T) {
	s := twoPerMinute()
	start, end := epoch, epoch.Add(125*time.Second)

	first, err := s.Fare(start, end)
	require.NoError(t, err)
	second, err := s.Fare(start, end)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}
