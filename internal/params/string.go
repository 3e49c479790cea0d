package params

import (
	"fmt"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// String is a text parameter with an optional allow-list.
type String struct {
	base
	validValues []string
}

// Normalize returns the NFC-normalized text. When an allow-list is set the
// value must be a member.
func (p *String) Normalize(raw any) (any, error) {
	v, ok, err := p.resolve(raw)
	if err != nil || !ok {
		return nil, err
	}
	s := norm.NFC.String(text(v))
	if len(p.validValues) > 0 && !slices.Contains(p.validValues, s) {
		return nil, &ParamError{
			Code:    CodeBadRequest,
			Param:   p.name,
			Value:   raw,
			Message: fmt.Sprintf("value %q is not one of the valid values", s),
		}
	}
	return s, nil
}

// Doc returns documentation metadata.
func (p *String) Doc() Doc {
	d := p.doc(KindString, "string", "")
	d.ValidValues = slices.Clone(p.validValues)
	return d
}
