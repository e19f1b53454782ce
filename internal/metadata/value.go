// Package metadata models arbitrary caller-supplied data attached to a
// feedback issue: a tree of mappings, sequences and scalars.
//
// Values are plain Go values with no shared references, so a tree built
// through this package is always acyclic. Mappings keep insertion order,
// which is the order entries are rendered in.
package metadata

import (
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

var kindNames = map[Kind]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindNumber:   "number",
	KindString:   "string",
	KindSequence: "sequence",
	KindMapping:  "mapping",
}

// String returns the kind name.
func (k Kind) String() string {
	return kindNames[k]
}

// Value is a tagged union over scalar, sequence and mapping nodes.
// The zero Value is null.
type Value struct {
	kind    Kind
	text    string // bool, number (JS-formatted), string
	items   []Value
	entries []Entry
}

// Entry is one key/value pair of a mapping.
type Entry struct {
	Key   string
	Value Value
}

// Null returns a null scalar.
func Null() Value { return Value{} }

// Bool returns a boolean scalar.
func Bool(b bool) Value {
	return Value{kind: KindBool, text: strconv.FormatBool(b)}
}

// String returns a string scalar.
func String(s string) Value {
	return Value{kind: KindString, text: s}
}

// maxSafeInt is the largest integer a float64 holds exactly (2^53).
const maxSafeInt = 1 << 53

// Int returns an integer number scalar. Integers beyond 2^53 lose precision
// the same way they do in JavaScript.
func Int(n int64) Value {
	if n > maxSafeInt || n < -maxSafeInt {
		return Float(float64(n))
	}
	return Value{kind: KindNumber, text: strconv.FormatInt(n, 10)}
}

// Float returns a floating point number scalar.
func Float(f float64) Value {
	return Value{kind: KindNumber, text: formatFloat(f)}
}

// Number returns a number scalar from a numeric literal such as "1.50" or
// "2e3". The literal is normalized the way JavaScript prints numbers.
// Literals that do not parse are kept as strings.
func Number(raw string) Value {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Int(n)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return String(raw)
	}
	return Float(f)
}

// Sequence returns a sequence of the given items.
func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, items: append([]Value{}, items...)}
}

// Field builds a mapping entry.
func Field(key string, v Value) Entry {
	return Entry{Key: key, Value: v}
}

// Mapping returns a mapping holding entries in the given order. A repeated
// key keeps its first position and takes the last value.
func Mapping(entries ...Entry) Value {
	m := Value{kind: KindMapping, entries: make([]Entry, 0, len(entries))}
	for _, e := range entries {
		m.entries = setEntry(m.entries, e)
	}
	return m
}

func setEntry(entries []Entry, e Entry) []Entry {
	for i := range entries {
		if entries[i].Key == e.Key {
			entries[i].Value = e.Value
			return entries
		}
	}
	return append(entries, e)
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsContainer reports whether v is a mapping or a sequence.
func (v Value) IsContainer() bool {
	return v.kind == KindMapping || v.kind == KindSequence
}

// IsScalar reports whether v is a null, bool, number or string.
func (v Value) IsScalar() bool { return !v.IsContainer() }

// Len returns the number of children of a container, or 0 for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindMapping:
		return len(v.entries)
	case KindSequence:
		return len(v.items)
	default:
		return 0
	}
}

// IsEmpty reports whether v is a container with no children.
func (v Value) IsEmpty() bool {
	return v.IsContainer() && v.Len() == 0
}

// Items returns the elements of a sequence.
func (v Value) Items() []Value { return v.items }

// Entries returns the entries of a mapping in insertion order.
func (v Value) Entries() []Entry { return v.entries }

// Get returns the value stored under key in a mapping.
func (v Value) Get(key string) (Value, bool) {
	for _, e := range v.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// String returns the display text of a scalar: "null", "true", "1.5" or the
// raw string. Containers return their compact JSON encoding.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool, KindNumber, KindString:
		return v.text
	default:
		return Stringify(v, "")
	}
}

// Labeled is one child of a container with its display label: the key for
// mapping entries, "[i]" for sequence elements.
type Labeled struct {
	Label string
	Value Value
}

// Children returns the labeled children of a container in order.
func (v Value) Children() []Labeled {
	switch v.kind {
	case KindMapping:
		out := make([]Labeled, len(v.entries))
		for i, e := range v.entries {
			out[i] = Labeled{Label: e.Key, Value: e.Value}
		}
		return out
	case KindSequence:
		out := make([]Labeled, len(v.items))
		for i, item := range v.items {
			out[i] = Labeled{Label: "[" + strconv.Itoa(i) + "]", Value: item}
		}
		return out
	default:
		return nil
	}
}
