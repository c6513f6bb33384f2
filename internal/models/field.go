package models

// FieldState distinguishes "the probe reported a value" from "the probe
// reported nothing" from "the field does not apply to this source". Keeping
// the three states explicit avoids ambiguity when merging probed, stored, and
// directory-declared metadata; the single Unknown sentinel appears only at the
// persistence boundary.
type FieldState int

const (
	// Known means the value was explicitly reported.
	Known FieldState = iota
	// UnknownValue means the source did not report the field.
	UnknownValue
	// NotApplicable means the field has no meaning for this source.
	NotApplicable
)

// Field is a tri-state string metadata value.
type Field struct {
	Value string
	State FieldState
}

// KnownField wraps a reported value. An empty value degrades to UnknownValue.
func KnownField(v string) Field {
	if v == "" {
		return Field{State: UnknownValue}
	}
	return Field{Value: v, State: Known}
}

// UnknownField is the absent-value field.
func UnknownField() Field { return Field{State: UnknownValue} }

// IsKnown reports whether the field carries a reported value.
func (f Field) IsKnown() bool { return f.State == Known }

// Or returns f when known, otherwise the first known fallback, otherwise the
// Unknown sentinel string.
func (f Field) Or(fallbacks ...Field) string {
	if f.IsKnown() {
		return f.Value
	}
	for _, fb := range fallbacks {
		if fb.IsKnown() {
			return fb.Value
		}
	}
	return Unknown
}
