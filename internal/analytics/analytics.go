// Package analytics answers the numeric questions behind the agent's tools:
// sales totals, week-over-week trends and claim breakdowns, straight from
// the operational tables. Results are JSON strings shaped for a language
// model to quote from.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/akiyama0/storemind/internal/log"
)

// DB is the query surface the service needs. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Service computes per-store summaries. Safe for concurrent use.
type Service struct {
	db     DB
	logger log.Logger
}

// New creates a Service. logger may be nil.
func New(db DB, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{db: db, logger: logger}
}

const salesWindowSQL = `
SELECT date, amount
FROM daily_sales
WHERE store_id = $1 AND date >= $2 AND date <= $3
ORDER BY date`

const salesWeeklySQL = `
SELECT date_trunc('week', date)::date AS week, COALESCE(SUM(amount), 0)
FROM daily_sales
WHERE store_id = $1 AND date >= $2
GROUP BY week
ORDER BY week`

const claimWindowSQL = `
SELECT date, category, description
FROM claims
WHERE store_id = $1 AND date >= $2 AND date <= $3
ORDER BY date DESC`

type dayAmount struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

// SalesSummary totals the window's sales and names the best day.
func (s *Service) SalesSummary(ctx context.Context, tenantID string, from, to time.Time) (string, error) {
	rows, err := s.db.Query(ctx, salesWindowSQL, tenantID, from, to)
	if err != nil {
		return "", fmt.Errorf("querying sales for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var (
		days  []dayAmount
		total int64
		best  dayAmount
	)
	for rows.Next() {
		var date time.Time
		var amount int64
		if err := rows.Scan(&date, &amount); err != nil {
			return "", fmt.Errorf("scanning sales row: %w", err)
		}
		d := dayAmount{Date: date.Format(time.DateOnly), Amount: amount}
		days = append(days, d)
		total += amount
		if amount > best.Amount {
			best = d
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading sales rows: %w", err)
	}

	out := map[string]any{
		"status": "ok",
		"days":   len(days),
		"total":  total,
	}
	if len(days) > 0 {
		out["average"] = total / int64(len(days))
		out["best_day"] = best
	}
	return marshal(out)
}

// SalesTrend reports weekly totals for the past weeks and the overall
// direction.
func (s *Service) SalesTrend(ctx context.Context, tenantID string, weeks int) (string, error) {
	since := time.Now().AddDate(0, 0, -7*weeks)
	rows, err := s.db.Query(ctx, salesWeeklySQL, tenantID, since)
	if err != nil {
		return "", fmt.Errorf("querying sales trend for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var series []dayAmount
	for rows.Next() {
		var week time.Time
		var amount int64
		if err := rows.Scan(&week, &amount); err != nil {
			return "", fmt.Errorf("scanning trend row: %w", err)
		}
		series = append(series, dayAmount{Date: week.Format(time.DateOnly), Amount: amount})
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading trend rows: %w", err)
	}

	direction := "flat"
	if len(series) >= 2 {
		switch first, last := series[0].Amount, series[len(series)-1].Amount; {
		case last > first:
			direction = "up"
		case last < first:
			direction = "down"
		}
	}
	return marshal(map[string]any{
		"status":    "ok",
		"weeks":     len(series),
		"weekly":    series,
		"direction": direction,
	})
}

type claim struct {
	Date        string `json:"date"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// ClaimSummary counts claims by category and lists the most recent ones.
func (s *Service) ClaimSummary(ctx context.Context, tenantID string, from, to time.Time) (string, error) {
	rows, err := s.db.Query(ctx, claimWindowSQL, tenantID, from, to)
	if err != nil {
		return "", fmt.Errorf("querying claims for %s: %w", tenantID, err)
	}
	defer rows.Close()

	var (
		claims     []claim
		byCategory = map[string]int{}
	)
	for rows.Next() {
		var date time.Time
		var c claim
		if err := rows.Scan(&date, &c.Category, &c.Description); err != nil {
			return "", fmt.Errorf("scanning claim row: %w", err)
		}
		c.Date = date.Format(time.DateOnly)
		claims = append(claims, c)
		byCategory[c.Category]++
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading claim rows: %w", err)
	}

	// Recent first already; cap the detail list so observations stay small.
	const maxDetail = 5
	detail := claims
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	return marshal(map[string]any{
		"status":      "ok",
		"total":       len(claims),
		"by_category": byCategory,
		"recent":      detail,
	})
}

func marshal(v map[string]any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding summary: %w", err)
	}
	return string(b), nil
}
