package db

import (
	"fmt"
	"time"
)

// TimeFormat is the fixed local timestamp format used for every created_at,
// updated_at and transaction date column.
const TimeFormat = "2006-01-02 15:04:05"

// timeNow is an indirection for tests.
var timeNow = time.Now

// nowString returns the current local time in the storage format.
func nowString() string {
	return timeNow().Format(TimeFormat)
}

// Now returns the current local time in the storage format. It is used where
// other packages need timestamps consistent with stored rows, such as the
// snapshot export date.
func Now() string {
	return nowString()
}

// inputDateLayouts are the externally-supplied date representations accepted
// by the transaction repository, tried in order. The second entry is the HTML
// datetime-local format used by the original client.
var inputDateLayouts = []string{
	TimeFormat,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
	"2006-01-02",
}

// parseInputDate converts an externally-supplied date representation into the
// fixed storage format. An empty value means now.
func parseInputDate(s string) (string, error) {
	if s == "" {
		return nowString(), nil
	}
	for _, layout := range inputDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.Format(TimeFormat), nil
		}
	}
	return "", fmt.Errorf("unparseable date %q", s)
}
