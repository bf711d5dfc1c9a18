package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks request bodies that could not be decoded.
var errBadRequest = errors.New("malformed request body")

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// decodeObject decodes the request body as a JSON object, calling fn for
// every field. fn must consume or skip the value.
func decodeObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	d := jx.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), 4096)
	if err := d.Obj(fn); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

// decodeMoney accepts a JSON number or a numeric string.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	}
}

// decodeOptMoney decodes a nullable amount.
func decodeOptMoney(d *jx.Decoder) (*decimal.Decimal, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := decodeMoney(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeOptTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeMoney(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func strField(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

// optStrField writes name only when v is set.
func optStrField(e *jx.Encoder, name, v string) {
	if v != "" {
		strField(e, name, v)
	}
}
