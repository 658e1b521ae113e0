package repo

import (
	"context"
	"fmt"

	"jewelshot/internal/infra"
	"jewelshot/internal/sqlinline"
)

// Overview aggregates queue outcomes for the operations dashboard.
type Overview struct {
	Total                int64            `json:"total"`
	Completed            int64            `json:"completed"`
	CompletedPassthrough int64            `json:"completed_passthrough"`
	Failed               int64            `json:"failed"`
	Last24h              int64            `json:"last_24h"`
	TopCountries         map[string]int64 `json:"top_countries"`
}

// AnalyticsRepository records request events and serves aggregates.
type AnalyticsRepository struct {
	sql infra.SQLExecutor
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(sql infra.SQLExecutor) *AnalyticsRepository {
	return &AnalyticsRepository{sql: sql}
}

// RecordRequest stores one API request event with its resolved country.
func (r *AnalyticsRepository) RecordRequest(ctx context.Context, route, country string, statusCode int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertRequestEvent, route, country, statusCode)
	if err != nil {
		return fmt.Errorf("analytics: record request: %w", err)
	}
	return nil
}

// GetOverview returns queue totals plus the top request countries.
func (r *AnalyticsRepository) GetOverview(ctx context.Context) (*Overview, error) {
	var overview Overview
	row := r.sql.QueryRow(ctx, sqlinline.QQueueOverview)
	if err := row.Scan(
		&overview.Total,
		&overview.Completed,
		&overview.CompletedPassthrough,
		&overview.Failed,
		&overview.Last24h,
	); err != nil {
		return nil, fmt.Errorf("analytics: overview: %w", err)
	}

	rows, err := r.sql.Query(ctx, sqlinline.QTopRequestCountries)
	if err != nil {
		return nil, fmt.Errorf("analytics: top countries: %w", err)
	}
	defer rows.Close()
	overview.TopCountries = make(map[string]int64)
	for rows.Next() {
		var country string
		var count int64
		if err := rows.Scan(&country, &count); err != nil {
			return nil, fmt.Errorf("analytics: scan country: %w", err)
		}
		overview.TopCountries[country] = count
	}
	return &overview, nil
}
