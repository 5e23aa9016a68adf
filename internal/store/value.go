package store

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the dynamic type held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindTime
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is one result cell. SQL NULL is KindNull, distinct from the empty
// string and from zero.
type Value struct {
	kind Kind
	i    int64
	u    uint64
	f    float64
	s    string
	b    []byte
	t    time.Time
}

// Row is one result row, columns in projection order.
type Row []Value

// ResultSet is the rows of a query in the order the database returned them.
type ResultSet []Row

// Null is the NULL Value.
var Null = Value{}

// NewInt returns an integer Value.
func NewInt(n int64) Value { return Value{kind: KindInt, i: n} }

// NewUint returns an unsigned integer Value.
func NewUint(n uint64) Value { return Value{kind: KindUint, u: n} }

// NewFloat returns a floating point Value.
func NewFloat(f float64) Value { return Value{kind: KindFloat, f: f} }

// NewString returns a text Value.
func NewString(s string) Value { return Value{kind: KindString, s: s} }

// NewBytes returns a binary Value. The slice is copied.
func NewBytes(b []byte) Value { return Value{kind: KindBytes, b: bytes.Clone(b)} }

// NewTime returns a timestamp Value.
func NewTime(t time.Time) Value { return Value{kind: KindTime, t: t} }

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is SQL NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Any returns the held value as a plain Go value: nil, int64, uint64,
// float64, string, []byte or time.Time.
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.b
	case KindTime:
		return v.t
	default:
		return nil
	}
}

// String formats v for display. NULL renders as "NULL".
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindBytes:
		return string(v.b)
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Equal reports whether v and o hold the same kind and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.b, o.b)
	case KindTime:
		return v.t.Equal(o.t)
	default:
		return false
	}
}

// typeClass groups database type names by how their text form is decoded.
type typeClass int

const (
	classText typeClass = iota
	classInt
	classFloat
	classDecimal
	classBinary
	classTime
)

// classify maps a driver-reported type name (ColumnType.DatabaseTypeName)
// to a typeClass. Unknown names are treated as text.
func classify(dbType string) typeClass {
	name := strings.ToUpper(strings.TrimSpace(dbType))
	name = strings.TrimPrefix(name, "UNSIGNED ")
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}

	switch name {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL", "YEAR":
		return classInt
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8", "DOUBLE PRECISION":
		return classFloat
	case "DECIMAL", "NUMERIC":
		return classDecimal
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY",
		"BYTEA", "BIT", "GEOMETRY":
		return classBinary
	case "DATE", "DATETIME", "TIMESTAMP", "TIMESTAMPTZ":
		return classTime
	default:
		return classText
	}
}

// timeLayouts are tried in order for temporal columns delivered as text.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// valueFromDriver converts a scanned driver value into a Value. dbType is
// the column's reported type name and decides how text payloads are read.
func valueFromDriver(src any, dbType string) (Value, error) {
	switch v := src.(type) {
	case nil:
		return Null, nil
	case int64:
		return NewInt(v), nil
	case int32:
		return NewInt(int64(v)), nil
	case int:
		return NewInt(int64(v)), nil
	case uint64:
		if v <= math.MaxInt64 {
			return NewInt(int64(v)), nil
		}
		return NewUint(v), nil
	case float64:
		return NewFloat(v), nil
	case float32:
		return NewFloat(float64(v)), nil
	case bool:
		if v {
			return NewInt(1), nil
		}
		return NewInt(0), nil
	case time.Time:
		return NewTime(v), nil
	case string:
		return valueFromText([]byte(v), dbType, false)
	case []byte:
		return valueFromText(v, dbType, true)
	default:
		return Null, &ConversionError{
			From: KindNull,
			To:   "value",
			Err:  fmt.Errorf("unsupported driver type %T", src),
		}
	}
}

// valueFromText decodes a text payload by column class. raw marks a []byte
// source, the only form that may become KindBytes.
func valueFromText(b []byte, dbType string, raw bool) (Value, error) {
	s := string(b)

	switch classify(dbType) {
	case classInt:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NewInt(n), nil
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return Null, &ConversionError{From: KindString, To: "int", Err: err}
		}
		return NewUint(n), nil
	case classFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Null, &ConversionError{From: KindString, To: "float", Err: err}
		}
		return NewFloat(f), nil
	case classBinary:
		if raw {
			return NewBytes(b), nil
		}
		return NewString(s), nil
	case classTime:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return NewTime(t), nil
			}
		}
		// Zero dates such as 0000-00-00 stay textual.
		return NewString(s), nil
	default:
		// DECIMAL and NUMERIC stay textual to keep their precision.
		return NewString(s), nil
	}
}
