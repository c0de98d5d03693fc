package http

import (
	"net/http"
	"time"

	apperrors "therabook/pkg/errors"
)

// ExtractDate parses the given query parameter as a calendar day (2006-01-02)
// in UTC. A missing parameter defaults to today.
func ExtractDate(r *http.Request, param string) (time.Time, error) {
	raw := r.URL.Query().Get(param)
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}

	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("invalid " + param + " parameter, must be YYYY-MM-DD: " + raw)
	}
	return day, nil
}
