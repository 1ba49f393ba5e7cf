package repository

import (
	"time"

	"cloud.google.com/go/civil"
)

func civilDate(t time.Time) civil.Date {
	return civil.DateOf(t)
}

func clampLimit(limit, fallback, max int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > max {
		return max
	}
	return limit
}
