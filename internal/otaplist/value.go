package otaplist

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"howett.net/plist"
)

// Kind is the tag of a Value.
type Kind int

const (
	Null Kind = iota
	Bool
	Integer
	Real
	Date
	Data
	String
	UID
	Array
	Dict
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Integer:
		return "integer"
	case Real:
		return "real"
	case Date:
		return "date"
	case Data:
		return "data"
	case String:
		return "string"
	case UID:
		return "uid"
	case Array:
		return "array"
	case Dict:
		return "dict"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is one node of a decoded property list. The zero Value is Null.
// A Value owns its children; trees never share nodes.
type Value struct {
	kind Kind
	b    bool
	// n holds the bits of an Integer or UID. neg is set only for
	// negative Integers, in which case n is the two's complement.
	n    uint64
	neg  bool
	f    float64
	t    time.Time
	data []byte
	s    string
	arr  []Value
	dict map[string]Value
}

func NewBool(b bool) Value {
	return Value{kind: Bool, b: b}
}

func NewInt(i int64) Value {
	return Value{kind: Integer, n: uint64(i), neg: i < 0}
}

func NewUint(u uint64) Value {
	return Value{kind: Integer, n: u}
}

func NewReal(f float64) Value {
	return Value{kind: Real, f: f}
}

func NewDate(t time.Time) Value {
	return Value{kind: Date, t: t}
}

func NewData(b []byte) Value {
	return Value{kind: Data, data: b}
}

func NewString(s string) Value {
	return Value{kind: String, s: s}
}

func NewUID(u uint64) Value {
	return Value{kind: UID, n: u}
}

func NewArray(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}

	return Value{kind: Array, arr: vs}
}

func NewDict(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}

	return Value{kind: Dict, dict: m}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == Bool
}

// AsInt reports the Integer as an int64. It is not ok if v is not an
// Integer or does not fit.
func (v Value) AsInt() (int64, bool) {
	if v.kind != Integer || (!v.neg && v.n > math.MaxInt64) {
		return 0, false
	}

	return int64(v.n), true
}

// AsUint reports the Integer as a uint64. It is not ok for negatives.
func (v Value) AsUint() (uint64, bool) {
	if v.kind != Integer || v.neg {
		return 0, false
	}

	return v.n, true
}

func (v Value) AsReal() (float64, bool) {
	return v.f, v.kind == Real
}

func (v Value) AsDate() (time.Time, bool) {
	return v.t, v.kind == Date
}

func (v Value) AsData() ([]byte, bool) {
	return v.data, v.kind == Data
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == String
}

func (v Value) AsUID() (uint64, bool) {
	return v.n, v.kind == UID
}

func (v Value) AsArray() ([]Value, bool) {
	return v.arr, v.kind == Array
}

func (v Value) AsDict() (map[string]Value, bool) {
	return v.dict, v.kind == Dict
}

// Get returns the value under key if v is a Dict holding it.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != Dict {
		return Value{}, false
	}

	child, ok := v.dict[key]
	return child, ok
}

// Lookup walks nested Dicts by keys.
func (v Value) Lookup(keys ...string) (Value, bool) {
	cur := v
	for _, key := range keys {
		var ok bool
		if cur, ok = cur.Get(key); !ok {
			return Value{}, false
		}
	}

	return cur, true
}

// Strings returns the String elements of an Array, skipping anything else.
func (v Value) Strings() []string {
	strs := []string{}
	for _, elem := range v.arr {
		if s, ok := elem.AsString(); ok {
			strs = append(strs, s)
		}
	}

	return strs
}

// Equal reports whether v and o are structurally equal: same kinds and
// values all the way down. Dict key order is not significant.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}

	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.b == o.b
	case Integer:
		return v.n == o.n && v.neg == o.neg
	case UID:
		return v.n == o.n
	case Real:
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	case Date:
		return v.t.Equal(o.t)
	case Data:
		return bytes.Equal(v.data, o.data)
	case String:
		return v.s == o.s
	case Array:
		if len(v.arr) != len(o.arr) {
			return false
		}

		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}

		return true
	case Dict:
		if len(v.dict) != len(o.dict) {
			return false
		}

		for key, child := range v.dict {
			other, ok := o.dict[key]
			if !ok || !child.Equal(other) {
				return false
			}
		}

		return true
	}

	return false
}

// Interface converts v into the generic tree howett.net/plist encodes:
// map[string]any, []any, string, bool, uint64, int64, float64,
// time.Time, []byte and plist.UID. Null converts to nil.
func (v Value) Interface() any {
	switch v.kind {
	case Bool:
		return v.b
	case Integer:
		if v.neg {
			return int64(v.n)
		}

		return v.n
	case Real:
		return v.f
	case Date:
		return v.t
	case Data:
		return v.data
	case String:
		return v.s
	case UID:
		return plist.UID(v.n)
	case Array:
		arr := make([]any, len(v.arr))
		for i, elem := range v.arr {
			arr[i] = elem.Interface()
		}

		return arr
	case Dict:
		dict := make(map[string]any, len(v.dict))
		for key, child := range v.dict {
			dict[key] = child.Interface()
		}

		return dict
	}

	return nil
}

// FromInterface is the inverse of Interface.
func FromInterface(a any) (Value, error) {
	switch t := a.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return NewBool(t), nil
	case uint64:
		return NewUint(t), nil
	case int64:
		return NewInt(t), nil
	case int:
		return NewInt(int64(t)), nil
	case float64:
		return NewReal(t), nil
	case float32:
		return NewReal(float64(t)), nil
	case time.Time:
		return NewDate(t), nil
	case []byte:
		return NewData(t), nil
	case string:
		return NewString(t), nil
	case plist.UID:
		return NewUID(uint64(t)), nil
	case []any:
		arr := make([]Value, len(t))
		for i, elem := range t {
			var err error
			if arr[i], err = FromInterface(elem); err != nil {
				return Value{}, err
			}
		}

		return NewArray(arr...), nil
	case map[string]any:
		dict := make(map[string]Value, len(t))
		for key, child := range t {
			v, err := FromInterface(child)
			if err != nil {
				return Value{}, err
			}

			dict[key] = v
		}

		return NewDict(dict), nil
	}

	return Value{}, malformedf("unsupported value of type %T", a)
}
