package querysql

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/imgaoyue/squealy/internal/params"
)

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dateRanges maps a range name to the offset of its first day from today.
// The range always ends today.
var dateRanges = map[string]func(today params.CalendarDate) params.CalendarDate{
	"last_3_days":  func(d params.CalendarDate) params.CalendarDate { return d.AddDate(0, 0, -2) },
	"last_week":    func(d params.CalendarDate) params.CalendarDate { return d.AddDate(0, 0, -6) },
	"last_month":   func(d params.CalendarDate) params.CalendarDate { return d.AddDate(0, -1, 0) },
	"last_quarter": func(d params.CalendarDate) params.CalendarDate { return d.AddDate(0, -2, 0) },
	"last_half":    func(d params.CalendarDate) params.CalendarDate { return d.AddDate(0, -5, 0) },
	"last_year":    func(d params.CalendarDate) params.CalendarDate { return d.AddDate(-1, 0, 0) },
}

var errUnavailable = errors.New("helper is not available outside a render")

// parseFuncs declares helper names so templates parse. Render replaces them.
var parseFuncs = template.FuncMap{
	bindFunc:     func(...any) (string, error) { return "", errUnavailable },
	"inclause":   func(...any) (Fragment, error) { return "", errUnavailable },
	"identifier": identifier,
	"daterange":  func(...any) (Fragment, error) { return "", errUnavailable },
	"datediff":   datediff,
	"today":      func() (params.CalendarDate, error) { return params.CalendarDate{}, errUnavailable },
}

func renderFuncs(b *binder, clock params.Clock) template.FuncMap {
	today := func() params.CalendarDate { return params.DateOf(clock.Now().UTC()) }
	return template.FuncMap{
		bindFunc: b.bind,
		"inclause": func(hint string, v any) (Fragment, error) {
			return inclause(b, hint, v)
		},
		"identifier": identifier,
		"daterange": func(column, rng string) (Fragment, error) {
			return daterange(b, today(), column, rng)
		},
		"datediff": datediff,
		"today":    today,
	}
}

// identifier validates and double-quotes a possibly dotted SQL identifier.
func identifier(name string) (Fragment, error) {
	parts := strings.Split(name, ".")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if !identPart.MatchString(p) {
			return "", fmt.Errorf("invalid identifier %q", name)
		}
		quoted[i] = `"` + p + `"`
	}
	return Fragment(strings.Join(quoted, ".")), nil
}

// inclause expands a list into (p1, p2, ...) binding each element.
// An empty list renders (NULL), which matches nothing.
func inclause(b *binder, hint string, v any) (Fragment, error) {
	if v == nil {
		return "(NULL)", nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return "", fmt.Errorf("inclause: expected a list for %q, got %T", hint, v)
	}
	if rv.Len() == 0 {
		return "(NULL)", nil
	}
	marks := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		m, err := b.bind(hint, rv.Index(i).Interface())
		if err != nil {
			return "", err
		}
		marks[i] = m
	}
	return Fragment("(" + strings.Join(marks, ", ") + ")"), nil
}

// daterange renders `"column" BETWEEN start AND end` for a named range
// ending today.
func daterange(b *binder, today params.CalendarDate, column, rng string) (Fragment, error) {
	start, ok := dateRanges[rng]
	if !ok {
		return "", fmt.Errorf("daterange: unknown range %q", rng)
	}
	col, err := identifier(column)
	if err != nil {
		return "", fmt.Errorf("daterange: %w", err)
	}
	hint := column[strings.LastIndex(column, ".")+1:]
	from, err := b.bind(hint, start(today))
	if err != nil {
		return "", err
	}
	to, err := b.bind(hint, today)
	if err != nil {
		return "", err
	}
	return Fragment(fmt.Sprintf("%s BETWEEN %s AND %s", col, from, to)), nil
}

// datediff counts the days, weeks, months or years from start to end,
// inclusive of both ends. Months and years whose day does not exist in a
// period are skipped. An end before start yields 0.
func datediff(start, end any, unit string) (int, error) {
	s, err := toDate(start)
	if err != nil {
		return 0, fmt.Errorf("datediff: start: %w", err)
	}
	e, err := toDate(end)
	if err != nil {
		return 0, fmt.Errorf("datediff: end: %w", err)
	}
	if e.Before(s) {
		return 0, nil
	}
	days := int(e.Time().Sub(s.Time()).Hours() / 24)
	switch strings.ToLower(unit) {
	case "day", "days":
		return days + 1, nil
	case "week", "weeks":
		return days/7 + 1, nil
	case "month", "months":
		return countSteps(s, e, 0, 1), nil
	case "year", "years":
		return countSteps(s, e, 1, 0), nil
	default:
		return 0, fmt.Errorf("datediff: unknown unit %q", unit)
	}
}

func countSteps(s, e params.CalendarDate, years, months int) int {
	n := 0
	for k := 0; ; k++ {
		t := time.Date(s.Year+k*years, s.Month+time.Month(k*months), 1, 0, 0, 0, 0, time.UTC)
		if t.After(e.Time()) {
			return n
		}
		// skip periods where the day does not exist, e.g. Feb 30
		d := time.Date(t.Year(), t.Month(), s.Day, 0, 0, 0, 0, time.UTC)
		if d.Month() != t.Month() {
			continue
		}
		if d.After(e.Time()) {
			return n
		}
		n++
	}
}

func toDate(v any) (params.CalendarDate, error) {
	switch d := v.(type) {
	case params.CalendarDate:
		return d, nil
	case time.Time:
		return params.DateOf(d), nil
	case string:
		return params.ParseCalendarDate(d)
	default:
		return params.CalendarDate{}, fmt.Errorf("expected a date, got %T", v)
	}
}
