package conditions

import (
	"fmt"
	"strings"
	"time"

	"github.com/hivecrm/journey/pkg/models"
	"github.com/hivecrm/journey/pkg/protocol"
)

const TypeTimeBased = "time_based"

// Time-based condition modes.
const (
	TimeModeDayOfWeek        = "day_of_week"
	TimeModeTimeRange        = "time_range"
	TimeModeDateRange        = "date_range"
	TimeModeContactDateField = "contact_date_field"
	TimeModeDaysSinceEvent   = "days_since_event"
)

// TimeCondition evaluates calendar windows: day-of-week lists, time-of-day
// ranges, date ranges, and comparisons against date-valued contact fields.
// The clock is injectable so evaluation stays deterministic in tests.
type TimeCondition struct {
	Mode     string
	Days     []string
	Start    string
	End      string
	Field    string
	Operator string
	Number   float64
	now      func() time.Time
}

func NewTimeCondition(config map[string]any, now func() time.Time) (*TimeCondition, error) {
	mode, _ := config["mode"].(string)
	if mode == "" {
		return nil, fmt.Errorf("time_based condition requires 'mode'")
	}

	if now == nil {
		now = time.Now
	}

	cond := &TimeCondition{
		Mode: mode,
		Days: stringList(config["days"]),
		now:  now,
	}

	cond.Start, _ = config["start"].(string)
	cond.End, _ = config["end"].(string)
	cond.Field, _ = config["field"].(string)
	cond.Operator, _ = config["operator"].(string)

	if n, ok := asNumber(config["days_count"]); ok {
		cond.Number = n
	}

	switch mode {
	case TimeModeDayOfWeek:
		if len(cond.Days) == 0 {
			return nil, fmt.Errorf("time_based %s requires 'days'", mode)
		}
	case TimeModeTimeRange, TimeModeDateRange:
		if cond.Start == "" || cond.End == "" {
			return nil, fmt.Errorf("time_based %s requires 'start' and 'end'", mode)
		}
	case TimeModeContactDateField, TimeModeDaysSinceEvent:
		if cond.Field == "" {
			return nil, fmt.Errorf("time_based %s requires 'field'", mode)
		}
	default:
		return nil, fmt.Errorf("unknown time_based mode %q", mode)
	}

	return cond, nil
}

func (c *TimeCondition) Evaluate(facts *models.ContactFacts) models.ConditionResult {
	now := c.now()

	details := map[string]any{"mode": c.Mode, "now": now.Format(time.RFC3339)}

	var match bool

	switch c.Mode {
	case TimeModeDayOfWeek:
		today := strings.ToLower(now.Weekday().String())
		details["actual"] = today

		for _, d := range c.Days {
			if strings.EqualFold(d, today) {
				match = true

				break
			}
		}
	case TimeModeTimeRange:
		match = c.inTimeRange(now, details)
	case TimeModeDateRange:
		match = c.inDateRange(now, details)
	case TimeModeContactDateField:
		match = c.matchContactDate(now, facts, details)
	case TimeModeDaysSinceEvent:
		match = c.matchDaysSince(now, facts, details)
	}

	return models.ConditionResult{Match: match, Details: details}
}

func (c *TimeCondition) inTimeRange(now time.Time, details map[string]any) bool {
	start, err1 := time.Parse("15:04", c.Start)
	end, err2 := time.Parse("15:04", c.End)

	if err1 != nil || err2 != nil {
		details["actual"] = nil

		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()

	details["actual"] = fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute())

	if startMin <= endMin {
		return minutes >= startMin && minutes <= endMin
	}

	// Overnight window, e.g. 22:00-06:00.
	return minutes >= startMin || minutes <= endMin
}

func (c *TimeCondition) inDateRange(now time.Time, details map[string]any) bool {
	start, ok1 := parseDate(c.Start)
	end, ok2 := parseDate(c.End)

	details["actual"] = now.Format("2006-01-02")

	if !ok1 || !ok2 {
		return false
	}

	day := now.Truncate(24 * time.Hour)

	return !day.Before(start) && !day.After(end.Add(24*time.Hour-time.Nanosecond))
}

func (c *TimeCondition) matchContactDate(now time.Time, facts *models.ContactFacts, details map[string]any) bool {
	value, present := facts.Field(c.Field)
	details["field"] = c.Field
	details["actual"] = value

	if !present {
		details["actual"] = nil

		return false
	}

	fieldDate, ok := parseDate(asString(value))
	if !ok {
		return false
	}

	today := now.Truncate(24 * time.Hour)
	fieldDay := fieldDate.Truncate(24 * time.Hour)

	switch c.Operator {
	case "is_past":
		return fieldDay.Before(today)
	case "is_future":
		return fieldDay.After(today)
	case "within_days":
		diff := fieldDay.Sub(today).Hours() / 24

		return diff >= 0 && diff <= c.Number
	default: // is_today
		return fieldDay.Equal(today)
	}
}

func (c *TimeCondition) matchDaysSince(now time.Time, facts *models.ContactFacts, details map[string]any) bool {
	value, present := facts.Field(c.Field)
	details["field"] = c.Field
	details["actual"] = value

	if !present {
		details["actual"] = nil

		return false
	}

	eventDate, ok := parseDate(asString(value))
	if !ok {
		return false
	}

	elapsed := now.Sub(eventDate).Hours() / 24
	details["days_elapsed"] = int(elapsed)

	if c.Operator == "at_most" {
		return elapsed <= c.Number
	}

	return elapsed >= c.Number
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

type timeConditionFactory struct {
	now func() time.Time
}

// NewTimeBasedFactory builds the time_based factory with the real clock.
func NewTimeBasedFactory() protocol.ConditionFactory {
	return &timeConditionFactory{now: time.Now}
}

// NewTimeBasedFactoryWithClock builds a time_based factory with a fixed
// clock, for tests.
func NewTimeBasedFactoryWithClock(now func() time.Time) protocol.ConditionFactory {
	return &timeConditionFactory{now: now}
}

func (f *timeConditionFactory) ID() string { return TypeTimeBased }

func (f *timeConditionFactory) Create(config map[string]any) (protocol.Condition, error) {
	return NewTimeCondition(config, f.now)
}

func (f *timeConditionFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{
				"type": "string",
				"enum": []string{
					TimeModeDayOfWeek, TimeModeTimeRange, TimeModeDateRange,
					TimeModeContactDateField, TimeModeDaysSinceEvent,
				},
			},
			"days":       map[string]any{"description": "Weekday names for day_of_week"},
			"start":      map[string]any{"type": "string"},
			"end":        map[string]any{"type": "string"},
			"field":      map[string]any{"type": "string"},
			"operator":   map[string]any{"type": "string"},
			"days_count": map[string]any{"type": "number"},
		},
		"required": []string{"mode"},
	}
}
