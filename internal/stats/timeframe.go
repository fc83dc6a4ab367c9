package stats

import (
	"fmt"
	"time"

	"github.com/soundprint-app/soundprint/internal/shared"
)

// Timeframe restricts an aggregate to a rolling lookback window.
type Timeframe string

const (
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeYear  Timeframe = "year"
	TimeframeAll   Timeframe = "all"
)

// allTimeEpoch is the earliest instant any history can start; the "all"
// timeframe cuts off here rather than at the zero time so the stored
// epoch milliseconds stay positive.
var allTimeEpoch = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

// ParseTimeframe validates a timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case TimeframeWeek, TimeframeMonth, TimeframeYear, TimeframeAll:
		return Timeframe(s), nil
	default:
		return "", fmt.Errorf("unknown timeframe %q: %w", s, shared.ErrInvalidInput)
	}
}

// StartDate returns the inclusive lower bound of the window ending at
// now. The bound is truncated to midnight UTC so every query within one
// day sees the same window.
func (t Timeframe) StartDate(now time.Time) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	switch t {
	case TimeframeWeek:
		return midnight.AddDate(0, 0, -7)
	case TimeframeMonth:
		return midnight.AddDate(0, -1, 0)
	case TimeframeYear:
		return midnight.AddDate(-1, 0, 0)
	default:
		return allTimeEpoch
	}
}
