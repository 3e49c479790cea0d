package querysql

import (
	"database/sql/driver"
	"fmt"
	"reflect"

	"github.com/imgaoyue/squealy/internal/queryir"
)

// Fragment is SQL text produced by a helper. Bind passes it through
// unchanged; every value inside it has already been bound.
type Fragment string

// binder collects bound values for one render. Never shared.
type binder struct {
	style      queryir.BindStyle
	positional queryir.Positional
	named      queryir.Named
	n          int
}

func newBinder(style queryir.BindStyle) *binder {
	b := &binder{style: style}
	if style.IsNamed() {
		b.named = queryir.Named{}
	} else {
		b.positional = queryir.Positional{}
	}
	return b
}

// bind records v and returns its placeholder. hint names the value for
// named styles; the per-render counter keeps names unique.
func (b *binder) bind(hint string, v any) (string, error) {
	if f, ok := v.(Fragment); ok {
		return string(f), nil
	}
	if isList(v) {
		return "", fmt.Errorf("cannot bind list value %q as a single parameter; use inclause", hint)
	}
	b.n++
	name := fmt.Sprintf("%s_%d", sanitizeName(hint), b.n)
	if b.style.IsNamed() {
		b.named[name] = v
	} else {
		b.positional = append(b.positional, v)
	}
	return b.style.Placeholder(b.n, name), nil
}

func (b *binder) bindings() queryir.Bindings {
	if b.style.IsNamed() {
		return b.named
	}
	return b.positional
}

// isList reports whether v is a slice, array or map other than []byte or a
// driver.Valuer.
func isList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(driver.Valuer); ok {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}
