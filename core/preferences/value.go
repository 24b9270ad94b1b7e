package preferences

// Kind identifies the variant held by a Value
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindString
)

// Value is a persisted preference: a boolean, an explicit null, or a string
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Null returns the null preference value
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean preference value
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string preference value
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the variant of v
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean held by v
func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// AsString returns the string held by v
func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

// Decode maps a stored string back to a Value.
// "true" and "false" become booleans, "null" and "undefined" become null.
func Decode(raw string) Value {
	switch raw {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null", "undefined":
		return Null()
	default:
		return String(raw)
	}
}

// Encode renders v in its stored form
func (v Value) Encode() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindString:
		return v.s
	default:
		return "null"
	}
}

// String implements fmt.Stringer
func (v Value) String() string { return v.Encode() }
