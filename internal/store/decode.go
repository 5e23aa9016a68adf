package store

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Scalar is the set of Go types a Value can be decoded into.
type Scalar interface {
	int | int32 | int64 | uint64 | float64 | bool | string | []byte | time.Time
}

// errIncompatible is the cause for a kind that has no conversion to the
// requested type.
var errIncompatible = errors.New("incompatible kind")

// Decode converts v into T. A NULL cell fails with ErrNullValue; use
// DecodeOptional for nullable columns.
func Decode[T Scalar](v Value) (T, error) {
	var out T
	if v.IsNull() {
		return out, &ConversionError{From: KindNull, To: typeName(out), Err: ErrNullValue}
	}
	if err := decodeInto(&out, v); err != nil {
		return out, &ConversionError{From: v.kind, To: typeName(out), Err: err}
	}
	return out, nil
}

// DecodeOptional converts v into *T, returning nil for NULL.
func DecodeOptional[T Scalar](v Value) (*T, error) {
	if v.IsNull() {
		return nil, nil
	}
	out, err := Decode[T](v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func decodeInto(dst any, v Value) error {
	switch p := dst.(type) {
	case *int64:
		n, err := v.toInt64()
		*p = n
		return err
	case *int:
		n, err := v.toInt64()
		if err == nil && strconv.IntSize == 32 && (n < math.MinInt32 || n > math.MaxInt32) {
			err = strconv.ErrRange
		}
		*p = int(n)
		return err
	case *int32:
		n, err := v.toInt64()
		if err == nil && (n < math.MinInt32 || n > math.MaxInt32) {
			err = strconv.ErrRange
		}
		*p = int32(n)
		return err
	case *uint64:
		n, err := v.toUint64()
		*p = n
		return err
	case *float64:
		f, err := v.toFloat64()
		*p = f
		return err
	case *bool:
		b, err := v.toBool()
		*p = b
		return err
	case *string:
		if v.kind == KindTime {
			*p = v.t.Format(time.RFC3339Nano)
			return nil
		}
		*p = v.String()
		return nil
	case *[]byte:
		switch v.kind {
		case KindBytes:
			*p = append([]byte(nil), v.b...)
		case KindString:
			*p = []byte(v.s)
		default:
			return errIncompatible
		}
		return nil
	case *time.Time:
		t, err := v.toTime()
		*p = t
		return err
	default:
		return errIncompatible
	}
}

func (v Value) toInt64() (int64, error) {
	switch v.kind {
	case KindInt:
		return v.i, nil
	case KindUint:
		if v.u > math.MaxInt64 {
			return 0, strconv.ErrRange
		}
		return int64(v.u), nil
	case KindFloat:
		if v.f != math.Trunc(v.f) || v.f < math.MinInt64 || v.f >= math.MaxInt64 {
			return 0, strconv.ErrRange
		}
		return int64(v.f), nil
	case KindString:
		return strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
	case KindBytes:
		return strconv.ParseInt(strings.TrimSpace(string(v.b)), 10, 64)
	default:
		return 0, errIncompatible
	}
}

func (v Value) toUint64() (uint64, error) {
	switch v.kind {
	case KindUint:
		return v.u, nil
	case KindInt:
		if v.i < 0 {
			return 0, strconv.ErrRange
		}
		return uint64(v.i), nil
	case KindString:
		return strconv.ParseUint(strings.TrimSpace(v.s), 10, 64)
	case KindBytes:
		return strconv.ParseUint(strings.TrimSpace(string(v.b)), 10, 64)
	default:
		return 0, errIncompatible
	}
}

func (v Value) toFloat64() (float64, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float64(v.i), nil
	case KindUint:
		return float64(v.u), nil
	case KindString:
		return strconv.ParseFloat(strings.TrimSpace(v.s), 64)
	case KindBytes:
		return strconv.ParseFloat(strings.TrimSpace(string(v.b)), 64)
	default:
		return 0, errIncompatible
	}
}

func (v Value) toBool() (bool, error) {
	switch v.kind {
	case KindInt:
		return v.i != 0, nil
	case KindUint:
		return v.u != 0, nil
	case KindString:
		return strconv.ParseBool(strings.TrimSpace(v.s))
	case KindBytes:
		return strconv.ParseBool(strings.TrimSpace(string(v.b)))
	default:
		return false, errIncompatible
	}
}

func (v Value) toTime() (time.Time, error) {
	switch v.kind {
	case KindTime:
		return v.t, nil
	case KindString, KindBytes:
		s := v.s
		if v.kind == KindBytes {
			s = string(v.b)
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised time %q", s)
	default:
		return time.Time{}, errIncompatible
	}
}
