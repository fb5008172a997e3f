// Package api holds the JSON wire format of the storefront HTTP API.
//
// Money is written as a JSON number with exactly two decimals and read from
// either a number or a numeric string. Timestamps are RFC 3339 in UTC.
package api

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/beautivra/internal/domain/failure"
)

// Decode runs fn over data and reports malformed input as a validation error
// on the request body.
func Decode(data []byte, fn func(d *jx.Decoder) error) error {
	if len(data) == 0 {
		return failure.Invalid("body", "is required")
	}
	if err := fn(jx.DecodeBytes(data)); err != nil {
		if failure.IsValidation(err) {
			return err
		}
		return failure.Invalid("body", err.Error())
	}
	return nil
}

// Encode returns the bytes written by fn.
func Encode(fn func(e *jx.Encoder)) []byte {
	var e jx.Encoder
	fn(&e)
	return e.Bytes()
}

// EncodeError writes {"code": code, "message": msg}.
func EncodeError(e *jx.Encoder, code int, msg string) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
}

// EncodeMessage writes {"message": msg, "success": true}.
func EncodeMessage(e *jx.Encoder, msg string) {
	e.ObjStart()
	e.FieldStart("message")
	e.Str(msg)
	e.FieldStart("success")
	e.Bool(true)
	e.ObjEnd()
}

func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.Errorf("expected number, got %s", d.Next())
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse amount %q", raw)
	}
	return v, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// isNull consumes a JSON null and reports whether it was one.
func isNull(d *jx.Decoder) (bool, error) {
	if d.Next() != jx.Null {
		return false, nil
	}
	return true, d.Null()
}

// field wraps a decode error with the JSON field it occurred in.
func field(name string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "field %q", name)
}
