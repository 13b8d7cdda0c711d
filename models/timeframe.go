package models

import "time"

// TimeframeDuration returns the bar length of a timeframe label.
// Both exchange-style ("5m", "1h") and Twelve Data style ("5min", "1day")
// labels are accepted.
func TimeframeDuration(timeframe string) (time.Duration, bool) {
	switch timeframe {
	case "1m", "1min":
		return time.Minute, true
	case "3m", "3min":
		return 3 * time.Minute, true
	case "5m", "5min":
		return 5 * time.Minute, true
	case "15m", "15min":
		return 15 * time.Minute, true
	case "30m", "30min":
		return 30 * time.Minute, true
	case "45min":
		return 45 * time.Minute, true
	case "1h":
		return time.Hour, true
	case "2h":
		return 2 * time.Hour, true
	case "4h":
		return 4 * time.Hour, true
	case "8h":
		return 8 * time.Hour, true
	case "1d", "1day":
		return 24 * time.Hour, true
	case "1w", "1week":
		return 7 * 24 * time.Hour, true
	}
	return 0, false
}

// TwelveDataInterval maps a timeframe label onto the interval names the
// Twelve Data API accepts. Unknown labels are passed through.
func TwelveDataInterval(timeframe string) string {
	switch timeframe {
	case "1m":
		return "1min"
	case "5m":
		return "5min"
	case "15m":
		return "15min"
	case "30m":
		return "30min"
	case "1d":
		return "1day"
	case "1w":
		return "1week"
	}
	return timeframe
}

// CandlesForDays calculates how many bars cover the given number of days,
// with a 10% buffer.
func CandlesForDays(timeframe string, days int) int {
	d, ok := TimeframeDuration(timeframe)
	if !ok || days <= 0 {
		return 0
	}
	perDay := float64(24*time.Hour) / float64(d)
	n := int(perDay * float64(days) * 1.1)
	if n < 1 {
		n = 1
	}
	return n
}
