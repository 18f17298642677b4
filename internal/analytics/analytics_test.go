package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB serves canned rows keyed by a fragment of the SQL text.
type fakeDB struct {
	rows     map[string][][]any
	queryErr error
	lastArgs []any
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.lastArgs = args
	for frag, rows := range f.rows {
		if strings.Contains(sql, frag) {
			return &fakeRows{rows: rows, pos: -1}, nil
		}
	}
	return &fakeRows{pos: -1}, nil
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	for i, v := range row {
		switch d := dest[i].(type) {
		case *time.Time:
			*d = v.(time.Time)
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		}
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func day(d int) time.Time {
	return time.Date(2026, 8, d, 0, 0, 0, 0, time.UTC)
}

func TestSalesSummary(t *testing.T) {
	db := &fakeDB{rows: map[string][][]any{
		"daily_sales": {
			{day(1), int64(120000)},
			{day(2), int64(98000)},
			{day(3), int64(151000)},
		},
	}}
	svc := New(db, nil)

	out, err := svc.SalesSummary(context.Background(), "store-01", day(1), day(3))
	if err != nil {
		t.Fatalf("SalesSummary: %v", err)
	}
	var got struct {
		Status  string `json:"status"`
		Days    int    `json:"days"`
		Total   int64  `json:"total"`
		Average int64  `json:"average"`
		BestDay struct {
			Date   string `json:"date"`
			Amount int64  `json:"amount"`
		} `json:"best_day"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if got.Status != "ok" || got.Days != 3 {
		t.Fatalf("status/days = %q/%d", got.Status, got.Days)
	}
	if got.Total != 369000 {
		t.Fatalf("total = %d, want 369000", got.Total)
	}
	if got.Average != 123000 {
		t.Fatalf("average = %d, want 123000", got.Average)
	}
	if got.BestDay.Date != "2026-08-03" || got.BestDay.Amount != 151000 {
		t.Fatalf("best day = %+v", got.BestDay)
	}
	if db.lastArgs[0] != "store-01" {
		t.Fatalf("store arg = %v", db.lastArgs[0])
	}
}

func TestSalesSummaryEmptyWindow(t *testing.T) {
	svc := New(&fakeDB{}, nil)
	out, err := svc.SalesSummary(context.Background(), "store-01", day(1), day(3))
	if err != nil {
		t.Fatalf("SalesSummary: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if got["total"].(float64) != 0 {
		t.Fatalf("total = %v, want 0", got["total"])
	}
	if _, ok := got["best_day"]; ok {
		t.Fatal("best_day should be absent for an empty window")
	}
}

func TestSalesTrendDirection(t *testing.T) {
	tests := []struct {
		name    string
		amounts []int64
		want    string
	}{
		{"rising", []int64{100, 150, 200}, "up"},
		{"falling", []int64{200, 150, 90}, "down"},
		{"flat", []int64{100, 120, 100}, "flat"},
		{"single week", []int64{100}, "flat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rows [][]any
			for i, a := range tt.amounts {
				rows = append(rows, []any{day(1 + 7*i), a})
			}
			svc := New(&fakeDB{rows: map[string][][]any{"date_trunc": rows}}, nil)

			out, err := svc.SalesTrend(context.Background(), "store-01", len(tt.amounts))
			if err != nil {
				t.Fatalf("SalesTrend: %v", err)
			}
			var got struct {
				Direction string `json:"direction"`
				Weeks     int    `json:"weeks"`
			}
			if err := json.Unmarshal([]byte(out), &got); err != nil {
				t.Fatalf("decoding trend: %v", err)
			}
			if got.Direction != tt.want {
				t.Fatalf("direction = %q, want %q", got.Direction, tt.want)
			}
			if got.Weeks != len(tt.amounts) {
				t.Fatalf("weeks = %d, want %d", got.Weeks, len(tt.amounts))
			}
		})
	}
}

func TestClaimSummaryCapsDetail(t *testing.T) {
	var rows [][]any
	for i := range 8 {
		rows = append(rows, []any{day(20 - i), "接客", "レジ待ち時間が長い"})
	}
	rows = append(rows, []any{day(5), "品質", "弁当の賞味期限切れ"})
	svc := New(&fakeDB{rows: map[string][][]any{"claims": rows}}, nil)

	out, err := svc.ClaimSummary(context.Background(), "store-01", day(1), day(20))
	if err != nil {
		t.Fatalf("ClaimSummary: %v", err)
	}
	var got struct {
		Total      int            `json:"total"`
		ByCategory map[string]int `json:"by_category"`
		Recent     []claim        `json:"recent"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding claims: %v", err)
	}
	if got.Total != 9 {
		t.Fatalf("total = %d, want 9", got.Total)
	}
	if got.ByCategory["接客"] != 8 || got.ByCategory["品質"] != 1 {
		t.Fatalf("by_category = %v", got.ByCategory)
	}
	if len(got.Recent) != 5 {
		t.Fatalf("recent = %d entries, want 5", len(got.Recent))
	}
}

func TestQueryErrorPropagates(t *testing.T) {
	svc := New(&fakeDB{queryErr: errors.New("connection refused")}, nil)
	if _, err := svc.SalesSummary(context.Background(), "store-01", day(1), day(2)); err == nil {
		t.Fatal("expected query error to propagate")
	}
	if _, err := svc.SalesTrend(context.Background(), "store-01", 4); err == nil {
		t.Fatal("expected query error to propagate")
	}
	if _, err := svc.ClaimSummary(context.Background(), "store-01", day(1), day(2)); err == nil {
		t.Fatal("expected query error to propagate")
	}
}
