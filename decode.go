package main

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ScalarKind is the JSON encoding a scalar arrived in.
type ScalarKind int

const (
	ScalarNone ScalarKind = iota
	ScalarString
	ScalarInt
	ScalarFloat
)

// Scalar is a JSON value that the API may send as a string, an integer or a float
// for the same logical field. Converting it never fails.
type Scalar struct {
	Kind  ScalarKind
	Str   string
	Int   int64
	Float float64
}

// ScalarOf classifies a gjson value. Numbers without a fraction or exponent that fit
// in int64 become ScalarInt; other numbers become ScalarFloat.
func ScalarOf(v gjson.Result) Scalar {
	switch v.Type {
	case gjson.String:
		return Scalar{Kind: ScalarString, Str: v.Str}
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			if n, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return Scalar{Kind: ScalarInt, Int: n}
			}
		}
		return Scalar{Kind: ScalarFloat, Float: v.Num}
	}
	return Scalar{}
}

func (s Scalar) String() string {
	switch s.Kind {
	case ScalarString:
		return s.Str
	case ScalarInt:
		return strconv.FormatInt(s.Int, 10)
	case ScalarFloat:
		return strconv.FormatFloat(s.Float, 'f', -1, 64)
	}
	return ""
}

// Number returns the numeric value. Strings count only when the whole string is a
// finite float literal.
func (s Scalar) Number() float64 {
	switch s.Kind {
	case ScalarFloat:
		return s.Float
	case ScalarInt:
		return float64(s.Int)
	case ScalarString:
		f, err := strconv.ParseFloat(s.Str, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}
	return 0
}

func flexString(v gjson.Result) string { return ScalarOf(v).String() }

func flexNumber(v gjson.Result) float64 { return ScalarOf(v).Number() }

// flexInt truncates toward zero and saturates at the int range.
func flexInt(v gjson.Result) int {
	f := math.Trunc(flexNumber(v))
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

// flexIntOr is flexInt with a fallback for absent fields.
func flexIntOr(v gjson.Result, def int) int {
	if !v.Exists() {
		return def
	}
	return flexInt(v)
}

// flexArray returns the elements of a JSON array. Any other value, including a lone
// scalar or object, yields no elements.
func flexArray(v gjson.Result) []gjson.Result {
	if !v.IsArray() {
		return nil
	}
	return v.Array()
}
