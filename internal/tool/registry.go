package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akiyama0/storemind/internal/log"
)

// Analytics is the collaborator behind the numeric tools. Each method
// returns a structured textual summary for one tenant and time window.
// Implementations may be slow and may fail; the registry's tools fold both
// into observations.
type Analytics interface {
	SalesSummary(ctx context.Context, tenantID string, from, to time.Time) (string, error)
	SalesTrend(ctx context.Context, tenantID string, weeks int) (string, error)
	ClaimSummary(ctx context.Context, tenantID string, from, to time.Time) (string, error)
}

// Registry assembles the tool set bound to a tenant and caches it. Tool sets
// close over the tenant ID, so two tenants never share a tool set, but one
// tenant's repeated requests do.
//
// Retention is unbounded: the tenant population (stores) is small and fixed,
// so there is no eviction. Clear drops everything for tests and reloads.
type Registry struct {
	mu    sync.Mutex
	cache map[string][]*Tool

	retriever *Retriever
	analytics Analytics
	logger    log.Logger
}

// NewRegistry creates a Registry. analytics may be nil, which drops the
// analytics tools from the set; logger may be nil.
func NewRegistry(retriever *Retriever, analytics Analytics, logger log.Logger) *Registry {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Registry{
		cache:     make(map[string][]*Tool),
		retriever: retriever,
		analytics: analytics,
		logger:    logger,
	}
}

// ToolsFor returns the tool set bound to tenantID, building it on first use.
func (r *Registry) ToolsFor(tenantID string) ([]*Tool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tools, ok := r.cache[tenantID]; ok {
		return tools, nil
	}

	tools, err := r.build(tenantID)
	if err != nil {
		return nil, fmt.Errorf("building tools for tenant %s: %w", tenantID, err)
	}
	r.cache[tenantID] = tools
	r.logger.Debug("built tool set", "tenant_id", tenantID, "tools", len(tools))
	return tools, nil
}

// Clear drops all cached tool sets.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string][]*Tool)
}

// SearchArgs are the arguments of the search tool.
type SearchArgs struct {
	Query    string `json:"query" jsonschema_description:"What to look for, in the user's own words"`
	DateFrom string `json:"date_from,omitempty" jsonschema_description:"Earliest date to include, YYYY-MM-DD"`
	DateTo   string `json:"date_to,omitempty" jsonschema_description:"Latest date to include, YYYY-MM-DD"`
}

// WindowArgs bound an analytics query to a date window.
type WindowArgs struct {
	DateFrom string `json:"date_from" jsonschema_description:"Window start, YYYY-MM-DD"`
	DateTo   string `json:"date_to" jsonschema_description:"Window end, YYYY-MM-DD"`
}

// TrendArgs select how far back a trend reaches.
type TrendArgs struct {
	Weeks int `json:"weeks,omitempty" jsonschema_description:"How many weeks back to analyze (default 4)"`
}

func (r *Registry) build(tenantID string) ([]*Tool, error) {
	var tools []*Tool

	search, err := New("search_store_records",
		"Search this store's daily reports, bulletin board posts and the company knowledge base. Returns ranked excerpts as JSON.",
		func(ctx context.Context, in SearchArgs) (string, error) {
			return r.retriever.Search(ctx, tenantID, in.Query, in.DateFrom, in.DateTo)
		})
	if err != nil {
		return nil, err
	}
	tools = append(tools, search)

	if r.analytics == nil {
		return tools, nil
	}

	sales, err := New("sales_summary",
		"Summarize this store's sales figures for a date window: totals, averages and notable days.",
		func(ctx context.Context, in WindowArgs) (string, error) {
			from, to, err := parseWindow(in.DateFrom, in.DateTo)
			if err != nil {
				return "", err
			}
			return r.analytics.SalesSummary(ctx, tenantID, from, to)
		})
	if err != nil {
		return nil, err
	}
	tools = append(tools, sales)

	trend, err := New("sales_trend",
		"Describe this store's week-over-week sales trend.",
		func(ctx context.Context, in TrendArgs) (string, error) {
			weeks := in.Weeks
			if weeks <= 0 {
				weeks = 4
			}
			return r.analytics.SalesTrend(ctx, tenantID, weeks)
		})
	if err != nil {
		return nil, err
	}
	tools = append(tools, trend)

	claims, err := New("claim_summary",
		"Summarize customer claims and complaints recorded for this store in a date window.",
		func(ctx context.Context, in WindowArgs) (string, error) {
			from, to, err := parseWindow(in.DateFrom, in.DateTo)
			if err != nil {
				return "", err
			}
			return r.analytics.ClaimSummary(ctx, tenantID, from, to)
		})
	if err != nil {
		return nil, err
	}
	tools = append(tools, claims)

	return tools, nil
}

func parseWindow(from, to string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date_from must be YYYY-MM-DD: %w", err)
	}
	end, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("date_to must be YYYY-MM-DD: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("date_to %s is before date_from %s", to, from)
	}
	return start, end, nil
}
