package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed 5-field cron expression evaluated in UTC:
// minute hour day-of-month month day-of-week.
// Examples:
//   - "*/30 * * * *" - every 30 minutes
//   - "0 * * * *"    - on the hour
//   - "0 8 * * *"    - every day at 08:00
//   - "0 10 * * 1"   - Monday at 10:00
//
// Supported field forms: *, n, n-m, n,m,o, */s, n-m/s.
type CronExpression struct {
	raw      string
	minutes  uint64 // bits 0-59
	hours    uint64 // bits 0-23
	days     uint64 // bits 1-31
	months   uint64 // bits 1-12
	weekdays uint64 // bits 0-6, 0 = Sunday
}

// ParseCronExpression parses a cron expression string.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: expr}
	specs := []struct {
		name     string
		min, max int
		dst      *uint64
	}{
		{"minute", 0, 59, &ce.minutes},
		{"hour", 0, 23, &ce.hours},
		{"day", 1, 31, &ce.days},
		{"month", 1, 12, &ce.months},
		{"weekday", 0, 6, &ce.weekdays},
	}

	for i, spec := range specs {
		mask, err := parseCronField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = mask
	}

	return ce, nil
}

// MustParseCronExpression parses a cron expression or panics.
// Use only for compile-time constants.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(fmt.Sprintf("invalid cron expression %q: %v", expr, err))
	}
	return ce
}

// parseCronField parses one field into a bitmask over [min, max].
func parseCronField(field string, min, max int) (uint64, error) {
	var mask uint64

	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return 0, fmt.Errorf("empty list element in %q", field)
		}

		step := 1
		if slash := strings.IndexByte(part, '/'); slash >= 0 {
			s, err := strconv.Atoi(part[slash+1:])
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("invalid step in %q", part)
			}
			step = s
			part = part[:slash]
		}

		start, end := min, max
		switch {
		case part == "*":
			// full range
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			lo, err := strconv.Atoi(bounds[0])
			if err != nil {
				return 0, fmt.Errorf("invalid range start in %q", part)
			}
			hi, err := strconv.Atoi(bounds[1])
			if err != nil {
				return 0, fmt.Errorf("invalid range end in %q", part)
			}
			if lo > hi {
				return 0, fmt.Errorf("descending range %q", part)
			}
			start, end = lo, hi
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", part)
			}
			start = v
			if step == 1 {
				end = v
			}
		}

		if start < min || end > max {
			return 0, fmt.Errorf("value out of range [%d-%d] in %q", min, max, part)
		}
		for i := start; i <= end; i += step {
			mask |= 1 << uint(i)
		}
	}

	if mask == 0 {
		return 0, fmt.Errorf("field %q matches nothing", field)
	}
	return mask, nil
}

// String returns the original cron expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the next UTC time matching the expression after t.
func (ce *CronExpression) Next(t time.Time) time.Time {
	// Start from the next whole minute.
	next := t.UTC().Add(time.Minute).Truncate(time.Minute)

	// Bounded walk: a valid expression matches within a year.
	const maxMinutes = 366 * 24 * 60
	for i := 0; i < maxMinutes; i++ {
		if ce.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}

	return time.Time{}
}

// WindowKey identifies the cadence window as the matched minute, so every
// instance firing the same tick computes the same lock key.
func (ce *CronExpression) WindowKey(t time.Time) string {
	return t.UTC().Truncate(time.Minute).Format("2006-01-02T15:04")
}

func (ce *CronExpression) matches(t time.Time) bool {
	u := t.UTC()
	return ce.minutes&(1<<uint(u.Minute())) != 0 &&
		ce.hours&(1<<uint(u.Hour())) != 0 &&
		ce.days&(1<<uint(u.Day())) != 0 &&
		ce.months&(1<<uint(u.Month())) != 0 &&
		ce.weekdays&(1<<uint(u.Weekday())) != 0
}

// Cadence presets for the engagement jobs.
const (
	Every30Minutes = "*/30 * * * *"
	EveryHour      = "0 * * * *"
	Every6Hours    = "0 */6 * * *"
	EveryDay2AM    = "0 2 * * *"
	EveryDay8AM    = "0 8 * * *"
	EveryMonday10  = "0 10 * * 1"
)
