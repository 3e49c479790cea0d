package params

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imgaoyue/squealy/internal/ir"
)

var fixedNow = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func fixedClock() Clock {
	return ClockFunc(func() time.Time { return fixedNow })
}

func mustNew(t *testing.T, spec ir.ParamSpec) Parameter {
	t.Helper()
	p, err := New(spec, fixedClock())
	require.NoError(t, err)
	return p
}

func TestMandatoryWithoutDefault(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(kind, func(t *testing.T) {
			p := mustNew(t, ir.ParamSpec{Kind: kind, Name: "x", Mandatory: true})
			for _, raw := range []any{nil, "", "   "} {
				_, err := p.Normalize(raw)
				require.Error(t, err)
				assert.True(t, HasCode(err, CodeRequiredMissing), "raw=%q err=%v", raw, err)

				pe, ok := AsParamError(err)
				require.True(t, ok)
				assert.Equal(t, "x", pe.Param)
			}
		})
	}
}

func TestOptionalAbsentIsNil(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(kind, func(t *testing.T) {
			p := mustNew(t, ir.ParamSpec{Kind: kind, Name: "x"})
			v, err := p.Normalize("")
			require.NoError(t, err)
			assert.Nil(t, v)
		})
	}
}

func TestStringAllowList(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindString, Name: "month", ValidValues: []string{"jan", "feb"}})

	v, err := p.Normalize("jan")
	require.NoError(t, err)
	assert.Equal(t, "jan", v)

	_, err = p.Normalize("mar")
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeBadRequest))
	pe, _ := AsParamError(err)
	assert.Equal(t, "mar", pe.Value)
}

func TestStringDefault(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindString, Name: "region", Default: "north", Mandatory: true})

	v, err := p.Normalize("  ")
	require.NoError(t, err)
	assert.Equal(t, "north", v)
}

func TestStringCoercesAndNormalizes(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindString, Name: "s"})

	v, err := p.Normalize(42)
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	v, err = p.Normalize("cafe\u0301")
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", v)
}

func TestNumber(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindNumber, Name: "n"})

	tests := []struct {
		raw  any
		want any
	}{
		{"42", int64(42)},
		{" -7 ", int64(-7)},
		{"4.5", 4.5},
		{"1e3", 1000.0},
		{7, 7},
		{2.5, 2.5},
		{json.Number("12"), int64(12)},
	}
	for _, tt := range tests {
		v, err := p.Normalize(tt.raw)
		require.NoError(t, err, "raw=%v", tt.raw)
		assert.Equal(t, tt.want, v, "raw=%v", tt.raw)
	}

	for _, raw := range []any{"abc", "NaN", "Inf", true} {
		_, err := p.Normalize(raw)
		require.Error(t, err, "raw=%v", raw)
		assert.True(t, HasCode(err, CodeNumberParse), "raw=%v", raw)
	}
}

func TestNumberNativeDefault(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindNumber, Name: "limit", Default: 10})
	v, err := p.Normalize(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, v)
}

func TestDateMacros(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindDate, Name: "d", Format: "DD/MM/YYYY"})

	tests := map[string]CalendarDate{
		"today":       {2024, time.March, 15},
		"TODAY":       {2024, time.March, 15},
		"current_day": {2024, time.March, 15},
		"tomorrow":    {2024, time.March, 16},
		"Next_Day":    {2024, time.March, 16},
	}
	for raw, want := range tests {
		v, err := p.Normalize(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, v, raw)
	}
}

func TestDateFormat(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindDate, Name: "d", Format: "DD/MM/YYYY"})

	v, err := p.Normalize("01/02/2023")
	require.NoError(t, err)
	assert.Equal(t, CalendarDate{2023, time.February, 1}, v)

	_, err = p.Normalize("2023-02-01")
	require.Error(t, err)
	pe, ok := AsParamError(err)
	require.True(t, ok)
	assert.Equal(t, CodeDateParse, pe.Code)
	assert.Equal(t, "DD/MM/YYYY", pe.Format)
	assert.Equal(t, "2023-02-01", pe.Value)
	assert.Contains(t, pe.Message, "DD/MM/YYYY")
}

func TestDateGoLayoutFormat(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindDate, Name: "d", Format: "Jan 2, 2006"})
	v, err := p.Normalize("Feb 3, 2021")
	require.NoError(t, err)
	assert.Equal(t, CalendarDate{2021, time.February, 3}, v)
}

func TestDateBestEffort(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindDate, Name: "d"})

	for _, raw := range []string{"2023-02-01", "2023/02/01", "20230201", "2023-02-01T12:00:00Z"} {
		v, err := p.Normalize(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, CalendarDate{2023, time.February, 1}, v, raw)
	}

	_, err := p.Normalize("not a date")
	assert.True(t, HasCode(err, CodeDateParse))
}

func TestDateTime(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindDateTime, Name: "ts"})

	v, err := p.Normalize("now")
	require.NoError(t, err)
	assert.Equal(t, fixedNow, v)

	v, err = p.Normalize("today")
	require.NoError(t, err)
	assert.Equal(t, fixedNow, v)

	v, err = p.Normalize("2023-02-01 08:09:10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.February, 1, 8, 9, 10, 0, time.UTC), v)

	_, err = p.Normalize("yesterday-ish")
	assert.True(t, HasCode(err, CodeDateTimeParse))
}

func TestDateTimeMacrosKeepTimeOfDay(t *testing.T) {
	late := time.Date(2024, time.January, 31, 23, 30, 0, 0, time.UTC)
	p, err := New(ir.ParamSpec{Kind: KindDateTime, Name: "ts", Format: "YYYY-MM-DD HH:mm"},
		ClockFunc(func() time.Time { return late }))
	require.NoError(t, err)

	for _, raw := range []string{"today", "Today", "now", "NOW"} {
		v, err := p.Normalize(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, late, v, raw)
	}
}

func TestDateTimeAcceptsLegacyKindName(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: "Datetime", Name: "ts", Format: "YYYY-MM-DD HH:mm"})
	v, err := p.Normalize("2023-02-01 08:09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.February, 1, 8, 9, 0, 0, time.UTC), v)
}

func TestNewRejectsBadDeclarations(t *testing.T) {
	tests := []struct {
		name string
		spec ir.ParamSpec
		want string
	}{
		{"unknown kind", ir.ParamSpec{Kind: "Boolean", Name: "b"}, `unknown kind "Boolean"`},
		{"missing name", ir.ParamSpec{Kind: KindString}, "name is required"},
		{"format on number", ir.ParamSpec{Kind: KindNumber, Name: "n", Format: "x"}, "format is not supported"},
		{"valid values on date", ir.ParamSpec{Kind: KindDate, Name: "d", ValidValues: []string{"a"}}, "valid_values"},
		{"bad default", ir.ParamSpec{Kind: KindNumber, Name: "n", Default: "ten"}, "invalid default_value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.spec, fixedClock())
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestDoc(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindString, Name: "month", Description: "Month", Mandatory: true, ValidValues: []string{"jan"}})
	d := p.Doc()
	assert.Equal(t, "month", d.Name)
	assert.Equal(t, "Month", d.Description)
	assert.True(t, d.Mandatory)
	assert.Equal(t, "string", d.Type)
	assert.Equal(t, []string{"jan"}, d.ValidValues)

	assert.Equal(t, "date", mustNew(t, ir.ParamSpec{Kind: KindDate, Name: "d"}).Doc().Format)
	assert.Equal(t, "number", mustNew(t, ir.ParamSpec{Kind: KindNumber, Name: "n"}).Doc().Type)
}

func TestCalendarDate(t *testing.T) {
	d := CalendarDate{2024, time.January, 31}
	assert.Equal(t, "2024-01-31", d.String())
	assert.Equal(t, CalendarDate{2024, time.March, 2}, d.AddDate(0, 1, 0))

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-31"`, string(b))

	var back CalendarDate
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, d, back)

	v, err := d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-31", v)
}

func TestGoLayout(t *testing.T) {
	assert.Equal(t, "2006-01-02 15:04:05", GoLayout("YYYY-MM-DD HH:mm:ss"))
	assert.Equal(t, "02/01/06", GoLayout("DD/MM/YY"))
	assert.Equal(t, "2006-01-02", GoLayout("2006-01-02"))
	assert.Equal(t, "2006-1-2", GoLayout("YYYY-M-D"))
	assert.Equal(t, "2/1/06 15:4", GoLayout("D/M/YY H:m"))
	assert.Equal(t, "January 2, 2006 3:04 PM", GoLayout("MMMM D, YYYY h:mm A"))
}

func TestDateUnpaddedFormat(t *testing.T) {
	p := mustNew(t, ir.ParamSpec{Kind: KindDate, Name: "d", Format: "YYYY-M-D"})

	for _, raw := range []string{"2024-3-5", "2024-03-05"} {
		v, err := p.Normalize(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, CalendarDate{2024, time.March, 5}, v, raw)
	}

	ts := mustNew(t, ir.ParamSpec{Kind: KindDateTime, Name: "ts", Format: "YYYY-MM-DD H:mm"})
	v, err := ts.Normalize("2024-03-05 7:45")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.March, 5, 7, 45, 0, 0, time.UTC), v)
}
