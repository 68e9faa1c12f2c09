// Package value implements the MongoDB-extended-JSON dialect used to encode
// table rows and script/query parameters over the wire: bare JSON for
// null/string/int/float/bool, and tagged objects for the types JSON has no
// native representation for.
package value

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

const (
	layoutTimestamp = "2006-01-02T15:04:05"
	layoutDate      = "2006-01-02"
)

// Value is a decoded wire value. Exactly one of the fields is meaningful;
// Kind says which.
type Value struct {
	Kind      Kind
	Null      bool
	String    string
	Number    float64
	Bool      bool
	Timestamp time.Time
	Date      time.Time
	Binary    []byte
	Raw       json.RawMessage // arbitrary JSON passed through untouched (Kind == KindJSON)
}

type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTimestamp
	KindDate
	KindBinary
	KindJSON
)

type taggedTimestamp struct {
	Timestamp string `json:"$timestamp"`
}

type taggedDate struct {
	Date string `json:"$date"`
}

type taggedBinary struct {
	Binary string `json:"$binary"`
}

// Decode parses a single wire value from raw JSON.
func Decode(raw json.RawMessage) (Value, error) {
	trimmed := raw
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return Value{Kind: KindNull, Null: true}, nil
	}

	// Try the tagged object forms first.
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err == nil {
		if ts, ok := probe["$timestamp"]; ok {
			var s string
			if err := json.Unmarshal(ts, &s); err != nil {
				return Value{}, fmt.Errorf("decode $timestamp: %w", err)
			}
			t, err := time.Parse(layoutTimestamp, s)
			if err != nil {
				return Value{}, fmt.Errorf("parse $timestamp %q: %w", s, err)
			}
			return Value{Kind: KindTimestamp, Timestamp: t}, nil
		}
		if d, ok := probe["$date"]; ok {
			var s string
			if err := json.Unmarshal(d, &s); err != nil {
				return Value{}, fmt.Errorf("decode $date: %w", err)
			}
			t, err := time.Parse(layoutDate, s)
			if err != nil {
				return Value{}, fmt.Errorf("parse $date %q: %w", s, err)
			}
			return Value{Kind: KindDate, Date: t}, nil
		}
		if b, ok := probe["$binary"]; ok {
			var s string
			if err := json.Unmarshal(b, &s); err != nil {
				return Value{}, fmt.Errorf("decode $binary: %w", err)
			}
			decoded, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return Value{}, fmt.Errorf("decode base64 $binary: %w", err)
			}
			return Value{Kind: KindBinary, Binary: decoded}, nil
		}
		// Any other object passes through as arbitrary JSON.
		return Value{Kind: KindJSON, Raw: raw}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Value{Kind: KindString, String: s}, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return Value{Kind: KindNumber, Number: n}, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return Value{Kind: KindBool, Bool: b}, nil
	}

	// Arrays and anything else pass through untouched.
	return Value{Kind: KindJSON, Raw: raw}, nil
}

// Encode serialises a Value back to its wire representation.
func Encode(v Value) (json.RawMessage, error) {
	switch v.Kind {
	case KindNull:
		return json.RawMessage("null"), nil
	case KindString:
		return json.Marshal(v.String)
	case KindNumber:
		return json.Marshal(v.Number)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindTimestamp:
		return json.Marshal(taggedTimestamp{Timestamp: v.Timestamp.Format(layoutTimestamp)})
	case KindDate:
		return json.Marshal(taggedDate{Date: v.Date.Format(layoutDate)})
	case KindBinary:
		return json.Marshal(taggedBinary{Binary: base64.StdEncoding.EncodeToString(v.Binary)})
	case KindJSON:
		if len(v.Raw) == 0 {
			return json.RawMessage("null"), nil
		}
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("encode value: unknown kind %d", v.Kind)
	}
}
