package queryir

import "fmt"

// CheckShape verifies that args has the shape style requires.
// Engines call it before executing so a mismatch fails loudly instead of
// silently binding nothing.
func CheckShape(style BindStyle, args Bindings) error {
	if args == nil {
		return nil
	}
	switch args.(type) {
	case Positional:
		if style.IsNamed() {
			return fmt.Errorf("bind style %s expects named bindings, got positional", style)
		}
	case Named:
		if !style.IsNamed() {
			return fmt.Errorf("bind style %s expects positional bindings, got named", style)
		}
	}
	return nil
}
