package params

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number is a numeric parameter. Integers normalize to int64, everything
// else parseable to float64.
type Number struct {
	base
}

// Normalize passes native numbers through unchanged and parses text.
func (p *Number) Normalize(raw any) (any, error) {
	v, ok, err := p.resolve(raw)
	if err != nil || !ok {
		return nil, err
	}
	switch n := v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return n, nil
	case json.Number:
		return p.parse(raw, n.String())
	case string:
		return p.parse(raw, n)
	default:
		return nil, p.fail(raw, fmt.Sprintf("value of type %T is not a number", v))
	}
}

func (p *Number) parse(raw any, s string) (any, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, p.fail(raw, fmt.Sprintf("could not parse %q as a number", s))
	}
	return f, nil
}

func (p *Number) fail(raw any, msg string) *ParamError {
	return &ParamError{Code: CodeNumberParse, Param: p.name, Value: raw, Message: msg}
}

// Doc returns documentation metadata.
func (p *Number) Doc() Doc {
	return p.doc(KindNumber, "number", "")
}
