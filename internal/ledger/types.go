// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/hoverlens/internal/pricing"
)

// =============================================================================
// PERIOD
// =============================================================================

// Period is the length of the rolling budget window.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Duration returns the window length. Unknown periods are treated as a month.
func (p Period) Duration() time.Duration {
	switch p {
	case PeriodDay:
		return 24 * time.Hour
	case PeriodWeek:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// ParsePeriod parses "day", "week" or "month" (also "daily", "weekly", "monthly").
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "day", "daily":
		return PeriodDay, nil
	case "week", "weekly":
		return PeriodWeek, nil
	case "month", "monthly", "":
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown budget period %q (want day, week or month)", s)
	}
}

// ResetMode selects what Reset does with existing history.
type ResetMode string

const (
	// ResetClear discards history.
	ResetClear ResetMode = "clear"
	// ResetArchive saves a snapshot of history before discarding it.
	ResetArchive ResetMode = "archive"
)

// =============================================================================
// RECORDS AND STATS
// =============================================================================

// Record is one billed provider call. Records are never modified.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Cost      pricing.Micros `json:"cost_micros"`
	Tokens    int            `json:"tokens"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Kind      string         `json:"kind"`
}

// Breakdown aggregates usage for one provider or model.
type Breakdown struct {
	Name     string         `json:"name"`
	Cost     pricing.Micros `json:"cost_micros"`
	Tokens   int            `json:"tokens"`
	Requests int            `json:"requests"`
}

// DailyCost aggregates usage for one calendar day.
type DailyCost struct {
	Date     time.Time      `json:"date"`
	Cost     pricing.Micros `json:"cost_micros"`
	Tokens   int            `json:"tokens"`
	Requests int            `json:"requests"`
}

// Stats summarizes the ledger.
type Stats struct {
	TotalCost     pricing.Micros `json:"total_cost_micros"`
	TotalTokens   int            `json:"total_tokens"`
	TotalRequests int            `json:"total_requests"`

	ByProvider []Breakdown `json:"by_provider"`
	ByModel    []Breakdown `json:"by_model"`

	// Rolling windows ending now.
	LastDay   pricing.Micros `json:"last_day_micros"`
	LastWeek  pricing.Micros `json:"last_week_micros"`
	LastMonth pricing.Micros `json:"last_month_micros"`

	// Days with usage in the last 30 days, oldest first.
	DailyBreakdown []DailyCost `json:"daily_breakdown"`

	Period     Period         `json:"period"`
	PeriodCost pricing.Micros `json:"period_cost_micros"`
	Limit      pricing.Micros `json:"limit_micros"`
	Remaining  pricing.Micros `json:"remaining_micros"`
	CanSpend   bool           `json:"can_spend"`

	Oldest *time.Time `json:"oldest,omitempty"`
}

// Alert reports that spending crossed a fraction of the budget.
type Alert struct {
	Threshold  float64        `json:"threshold"`
	Period     Period         `json:"period"`
	PeriodCost pricing.Micros `json:"period_cost_micros"`
	Limit      pricing.Micros `json:"limit_micros"`
	At         time.Time      `json:"at"`
}

// AlertFunc receives budget alerts. It runs on its own goroutine.
type AlertFunc func(Alert)
