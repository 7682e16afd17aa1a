package service

import (
	"fmt"
	"time"
)

// ComputeFee bills every started hour at hourlyRate, with a minimum of one
// hour. The result is in the smallest currency unit.
func ComputeFee(entry, exit time.Time, hourlyRate int64) (int64, error) {
	if exit.Before(entry) {
		return 0, fmt.Errorf("%w: exit time %s is before entry time %s", ErrInvalidInput, exit.Format(time.RFC3339), entry.Format(time.RFC3339))
	}
	if hourlyRate < 0 {
		return 0, fmt.Errorf("%w: negative hourly rate", ErrInvalidInput)
	}

	duration := exit.Sub(entry)
	hours := int64(duration / time.Hour)
	if duration%time.Hour != 0 {
		hours++
	}
	if hours < 1 {
		hours = 1
	}
	return hours * hourlyRate, nil
}
