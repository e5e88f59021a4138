// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pricing

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// ============================================================================
// MONEY
// ============================================================================

// MicrosPerDollar is the number of Micros in one US dollar.
const MicrosPerDollar = 1_000_000

// Micros is an amount of money in millionths of a US dollar.
type Micros int64

// FromDollars converts a dollar amount to Micros, rounding to the nearest micro.
func FromDollars(d float64) Micros {
	return Micros(math.Round(d * MicrosPerDollar))
}

// Dollars returns the amount as floating point dollars for display.
func (m Micros) Dollars() float64 {
	return float64(m) / MicrosPerDollar
}

// String formats the amount as dollars with six decimal places.
func (m Micros) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s$%d.%06d", sign, v/MicrosPerDollar, v%MicrosPerDollar)
}

// ============================================================================
// PRICE
// ============================================================================

// Price is the cost of 1K tokens for one model.
type Price struct {
	InputPer1K  Micros `json:"input_per_1k" toml:"input_per_1k"`
	OutputPer1K Micros `json:"output_per_1k" toml:"output_per_1k"`
}

// Free is the zero price used by local backends.
var Free = Price{}

// IsFree reports whether both rates are zero.
func (p Price) IsFree() bool {
	return p.InputPer1K == 0 && p.OutputPer1K == 0
}

// Blended returns the average of the input and output rates. It is used when
// a backend reports only a total token count.
func (p Price) Blended() Micros {
	return (p.InputPer1K + p.OutputPer1K) / 2
}

// Cost bills a call with a known input/output token split.
func (p Price) Cost(inputTokens, outputTokens int) Micros {
	return perThousand(inputTokens, p.InputPer1K) + perThousand(outputTokens, p.OutputPer1K)
}

// CostTotal bills a call where only the total token count is known.
func (p Price) CostTotal(totalTokens int) Micros {
	return perThousand(totalTokens, p.Blended())
}

// perThousand computes tokens*rate/1000 rounded half-up.
func perThousand(tokens int, rate Micros) Micros {
	if tokens <= 0 || rate <= 0 {
		return 0
	}
	return Micros((int64(tokens)*int64(rate) + 500) / 1000)
}

// ============================================================================
// PRICE TABLES
// ============================================================================

// Table maps model identifiers (or identifier prefixes) to prices.
type Table map[string]Price

// Lookup finds the price for a model. An exact match wins, then the longest
// key that prefixes the model. Vendor-qualified names such as
// "openai/gpt-4o" also match on the part after the last slash.
func (t Table) Lookup(model string) (Price, bool) {
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return Price{}, false
	}
	if p, ok := t.lookup(model); ok {
		return p, true
	}
	if i := strings.LastIndex(model, "/"); i >= 0 && i < len(model)-1 {
		return t.lookup(model[i+1:])
	}
	return Price{}, false
}

func (t Table) lookup(model string) (Price, bool) {
	if p, ok := t[model]; ok {
		return p, true
	}
	best := ""
	for k := range t {
		if strings.HasPrefix(model, k) && len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return Price{}, false
	}
	return t[best], true
}

// Max returns the most expensive entry, compared by the sum of both rates.
// It is used to bill models missing from the table without undercounting.
func (t Table) Max() Price {
	var best Price
	for _, p := range t {
		if p.InputPer1K+p.OutputPer1K > best.InputPer1K+best.OutputPer1K {
			best = p
		}
	}
	return best
}

// Models returns the table's keys in sorted order.
func (t Table) Models() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge returns a copy of t with the entries of other layered on top.
func (t Table) Merge(other Table) Table {
	out := make(Table, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[strings.ToLower(k)] = v
	}
	return out
}

// OpenAI prices for OpenAI-compatible chat completion backends.
// $0.15/M input is 150 micros per 1K.
var OpenAI = Table{
	"gpt-4o-mini":   {InputPer1K: 150, OutputPer1K: 600},
	"gpt-4o":        {InputPer1K: 2500, OutputPer1K: 10000},
	"gpt-4.1-nano":  {InputPer1K: 100, OutputPer1K: 400},
	"gpt-4.1-mini":  {InputPer1K: 400, OutputPer1K: 1600},
	"gpt-4.1":       {InputPer1K: 2000, OutputPer1K: 8000},
	"gpt-4-turbo":   {InputPer1K: 10000, OutputPer1K: 30000},
	"gpt-3.5-turbo": {InputPer1K: 500, OutputPer1K: 1500},
	"o3-mini":       {InputPer1K: 1100, OutputPer1K: 4400},
	"deepseek-chat": {InputPer1K: 270, OutputPer1K: 1100},
	"llama-3.1-8b":  {InputPer1K: 50, OutputPer1K: 80},
	"llama-3.3-70b": {InputPer1K: 590, OutputPer1K: 790},
}

// Anthropic prices for the Messages API.
var Anthropic = Table{
	"claude-3-haiku":    {InputPer1K: 250, OutputPer1K: 1250},
	"claude-3-5-haiku":  {InputPer1K: 800, OutputPer1K: 4000},
	"claude-3-5-sonnet": {InputPer1K: 3000, OutputPer1K: 15000},
	"claude-3-7-sonnet": {InputPer1K: 3000, OutputPer1K: 15000},
	"claude-sonnet-4":   {InputPer1K: 3000, OutputPer1K: 15000},
	"claude-3-opus":     {InputPer1K: 15000, OutputPer1K: 75000},
	"claude-opus-4":     {InputPer1K: 15000, OutputPer1K: 75000},
}
