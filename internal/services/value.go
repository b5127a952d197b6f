package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "null"
	}
}

// Value is a JSON-like tree. Maps keep insertion order and numbers keep their
// literal text so a translated structure round-trips byte for byte apart from
// its strings. The zero Value is null.
type Value struct {
	kind   Kind
	str    string
	num    json.Number
	b      bool
	items  []Value
	fields []Field
}

// Field is one entry of a map Value.
type Field struct {
	Key   string
	Value Value
}

func Null() Value                { return Value{} }
func String(s string) Value      { return Value{kind: KindString, str: s} }
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }

// List builds a list Value. The items slice is copied.
func List(items ...Value) Value {
	return Value{kind: KindList, items: append([]Value{}, items...)}
}

// Map builds a map Value. A repeated key keeps its first position and last value.
func Map(fields ...Field) Value {
	v := Value{kind: KindMap, fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		v = v.with(f.Key, f.Value)
	}
	return v
}

func (v Value) with(key string, val Value) Value {
	for i := range v.fields {
		if v.fields[i].Key == key {
			v.fields[i].Value = val
			return v
		}
	}
	v.fields = append(v.fields, Field{Key: key, Value: val})
	return v
}

func (v Value) Kind() Kind          { return v.kind }
func (v Value) Str() string         { return v.str }
func (v Value) Num() json.Number    { return v.num }
func (v Value) BoolValue() bool     { return v.b }
func (v Value) Len() int            { return len(v.items) + len(v.fields) }
func (v Value) Items() []Value      { return append([]Value{}, v.items...) }
func (v Value) Fields() []Field     { return append([]Field{}, v.fields...) }
func (v Value) IsNull() bool        { return v.kind == KindNull }

// Get returns the value stored under key in a map Value.
func (v Value) Get(key string) (Value, bool) {
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Equal reports deep equality, including map key order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Key != o.fields[i].Key || !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON writes maps in insertion order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindNumber:
		if v.num == "" {
			buf.WriteString("0")
		} else {
			buf.WriteString(v.num.String())
		}
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := f.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value kind %d", v.kind)
	}
	return nil
}

// UnmarshalJSON decodes any JSON document, keeping map order and number literals.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON value")
	}
	*v = parsed
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case json.Delim:
		switch t {
		case '[':
			list := Value{kind: KindList, items: []Value{}}
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				list.items = append(list.items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return list, nil
		case '{':
			m := Value{kind: KindMap, fields: []Field{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("invalid object key %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m = m.with(key, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return m, nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}
