package entities

import "time"

// TimeLayout is fixed width so stored timestamps sort chronologically as strings.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Now returns the current UTC time formatted with TimeLayout.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}
