package params

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical text form of a Date.
const DateLayout = "2006-01-02"

// CalendarDate is a date without time of day. It binds to SQL as
// "YYYY-MM-DD" text and marshals to JSON the same way.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) CalendarDate {
	y, m, d := t.Date()
	return CalendarDate{Year: y, Month: m, Day: d}
}

// ParseCalendarDate parses "YYYY-MM-DD".
func ParseCalendarDate(s string) (CalendarDate, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return CalendarDate{}, err
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of d.
func (d CalendarDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDate adds years, months and days with time.AddDate normalization.
func (d CalendarDate) AddDate(years, months, days int) CalendarDate {
	return DateOf(d.Time().AddDate(years, months, days))
}

// Before reports whether d is strictly before other.
func (d CalendarDate) Before(other CalendarDate) bool {
	return d.Time().Before(other.Time())
}

func (d CalendarDate) String() string {
	return d.Time().Format(DateLayout)
}

// Value implements driver.Valuer.
func (d CalendarDate) Value() (driver.Value, error) {
	return d.String(), nil
}

// MarshalJSON encodes d as "YYYY-MM-DD".
func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD".
func (d *CalendarDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCalendarDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// dateMacros resolve relative to the current instant.
var dateMacros = map[string]func(now time.Time) time.Time{
	"today":       func(now time.Time) time.Time { return now },
	"current_day": func(now time.Time) time.Time { return now },
	"tomorrow":    func(now time.Time) time.Time { return now.AddDate(0, 0, 1) },
	"next_day":    func(now time.Time) time.Time { return now.AddDate(0, 0, 1) },
}

// dateTimeMacros both resolve to the current instant.
var dateTimeMacros = map[string]func(now time.Time) time.Time{
	"today": func(now time.Time) time.Time { return now },
	"now":   func(now time.Time) time.Time { return now },
}

// fallbackLayouts are tried in order when no format is configured.
var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"20060102",
}

// Date is a calendar date parameter. Normalized values are CalendarDate.
type Date struct {
	base
	format string
	clock  Clock
}

// Normalize resolves macros, then parses with the configured format or the
// fallback layouts.
func (p *Date) Normalize(raw any) (any, error) {
	v, ok, err := p.resolve(raw)
	if err != nil || !ok {
		return nil, err
	}
	t, err := parseTime(text(v), p.format, dateMacros, p.clock)
	if err != nil {
		return nil, p.fail(raw, err)
	}
	return DateOf(t), nil
}

func (p *Date) fail(raw any, cause error) *ParamError {
	return &ParamError{
		Code:    CodeDateParse,
		Param:   p.name,
		Value:   raw,
		Format:  p.format,
		Message: cause.Error(),
	}
}

// Doc returns documentation metadata.
func (p *Date) Doc() Doc {
	return p.doc(KindDate, "string", "date")
}

// DateTime is an instant parameter. Normalized values are time.Time, in UTC
// unless the input carried a zone.
type DateTime struct {
	base
	format string
	clock  Clock
}

// Normalize resolves macros, then parses with the configured format or the
// fallback layouts.
func (p *DateTime) Normalize(raw any) (any, error) {
	v, ok, err := p.resolve(raw)
	if err != nil || !ok {
		return nil, err
	}
	t, err := parseTime(text(v), p.format, dateTimeMacros, p.clock)
	if err != nil {
		return nil, &ParamError{
			Code:    CodeDateTimeParse,
			Param:   p.name,
			Value:   raw,
			Format:  p.format,
			Message: err.Error(),
		}
	}
	return t, nil
}

// Doc returns documentation metadata.
func (p *DateTime) Doc() Doc {
	return p.doc(KindDateTime, "string", "date-time")
}

func parseTime(s, format string, macros map[string]func(time.Time) time.Time, clock Clock) (time.Time, error) {
	s = strings.TrimSpace(s)
	if resolve, ok := macros[strings.ToLower(s)]; ok {
		return resolve(clock.Now().UTC()), nil
	}
	if format != "" {
		layout := GoLayout(format)
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("value %q does not match format %q", s, format)
		}
		return t, nil
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("could not parse %q", s)
}

// tokenLayouts translates token formats to Go layouts. The replacer tries
// tokens in argument order, so each longer token precedes its prefixes.
var tokenLayouts = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"M", "1",
	"DD", "02",
	"D", "2",
	"HH", "15",
	"H", "15",
	"hh", "03",
	"h", "3",
	"mm", "04",
	"m", "4",
	"ss", "05",
	"s", "5",
	"SSS", "000",
	"ZZ", "-07:00",
	"Z", "-0700",
	"A", "PM",
)

// GoLayout returns a Go time layout for format. Formats already written as
// Go reference layouts are returned unchanged.
func GoLayout(format string) string {
	if strings.Contains(format, "2006") || strings.Contains(format, "15:04") || strings.Contains(format, "Jan") {
		return format
	}
	return tokenLayouts.Replace(format)
}
