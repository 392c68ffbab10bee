package fare

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// LoadSchedule reads the full rate history. Loaded once at startup;
// rate changes ship as migrations.
func LoadSchedule(ctx context.Context, db *sqlx.DB) (*Schedule, error) {
	var rates []Rate
	err := db.SelectContext(ctx, &rates, loadRatesQuery)
	if err != nil {
		return nil, err
	}
	return NewSchedule(rates), nil
}

const loadRatesQuery = `SELECT effective_from, rate_per_minute FROM fare_rates ORDER BY effective_from ASC`
