// Copyright 2024 Michael C Shebanow
// Licensed under the Apache License, Version 2.0. See license text in the LICENSE file.

// Package vcd implements the Value Change Dump writer used to trace a
// pv.Root simulation, plus the pluggable value-to-bitstring Formatter and
// bit-width oracle that every Wire and Register uses to render itself.
package vcd

import (
	"math"
	"strconv"
	"strings"
	"unsafe"
)

// Formatter converts a value of type T to a VCD bitstring. The default
// implementations cover the built-in numeric types, bool, float32 and
// float64; callers may plug in their own for custom types via
// Wire.SetFormatter / Register.SetFormatter.
type Formatter[T any] interface {
	// String renders v as a VCD value token: for width 1, a single
	// '0'/'1' digit; for width > 1, "b" followed by width binary digits,
	// MSB first.
	String(v T) string
	// Undefined renders the all-X value for this formatter's width.
	Undefined() string
	// Width returns the configured bit width.
	Width() int
	// SetWidth overrides the bit width (e.g. for a bus narrower or wider
	// than the natural width of T).
	SetWidth(w int)
}

// width2index renders the "[msb:lsb]" suffix VCD convention uses to
// document a bus's bit range in $var lines. Width 1 has no suffix.
func width2index(w int) string {
	if w <= 1 {
		return ""
	}
	return " [" + strconv.Itoa(w-1) + ":0]"
}

func undefinedOf(w int) string {
	if w <= 1 {
		return "x"
	}
	var b strings.Builder
	b.WriteByte('b')
	for i := 0; i < w; i++ {
		b.WriteByte('x')
	}
	return b.String()
}

// bitsToString renders the low w bits of uv as a VCD value token, MSB
// first, with a "b" prefix when w > 1. This is the Go equivalent of the
// original library's value2string_base_t::value2string.
func bitsToString(uv uint64, w int) string {
	if w <= 1 {
		if uv&1 != 0 {
			return "1"
		}
		return "0"
	}
	buf := make([]byte, w+1)
	buf[0] = 'b'
	for i := 0; i < w; i++ {
		bit := (uv >> uint(w-1-i)) & 1
		if bit != 0 {
			buf[i+1] = '1'
		} else {
			buf[i+1] = '0'
		}
	}
	return string(buf)
}

// BitWidth is the bit-width oracle: it reports the natural width, in bits,
// of T. bool is special-cased to 1 bit; every other type defaults to
// 8*sizeof(T), mirroring original_source/include/pv_bitwidth.h's generic
// template plus its bool specialization.
func BitWidth[T any]() int {
	var zero T
	if _, ok := any(zero).(bool); ok {
		return 1
	}
	return int(unsafe.Sizeof(zero)) * 8
}

type defaultFormatter[T Numeric] struct {
	width int
}

// Numeric mirrors pv.Numeric without importing the root package, so that
// vcd has no dependency cycle back on pv; pv's Wire/Register satisfy this
// constraint identically.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}

// NewDefaultFormatter builds the generic fallback Formatter for any Numeric
// type, with the natural BitWidth[T]() as its initial width.
func NewDefaultFormatter[T Numeric]() Formatter[T] {
	return &defaultFormatter[T]{width: BitWidth[T]()}
}

func (f *defaultFormatter[T]) Width() int      { return f.width }
func (f *defaultFormatter[T]) SetWidth(w int)  { f.width = w }
func (f *defaultFormatter[T]) Undefined() string { return undefinedOf(f.width) }

func (f *defaultFormatter[T]) String(v T) string {
	// Reinterpret v as an unsigned bit pattern via toUint64, which covers
	// every Numeric T so the generic formatter stays total.
	return bitsToString(toUint64(v), f.width)
}

// toUint64 truncates/reinterprets a Numeric value to its low 64 bits. For
// float32 and float64 this is the IEEE bit pattern; a named type over a
// float kind does not match those cases and goes through a numeric
// conversion instead.
func toUint64[T Numeric](v T) uint64 {
	switch x := any(v).(type) {
	case float32:
		return uint64(math.Float32bits(x))
	case float64:
		return math.Float64bits(x)
	default:
		return uint64(anyToInt64(v))
	}
}

func anyToInt64[T Numeric](v T) int64 {
	// A generic numeric conversion: valid for every type in the Numeric
	// constraint except float32/float64, which are intercepted above.
	return int64(v)
}

type boolFormatter struct{}

// NewBoolFormatter returns the width-1 Formatter for bool, matching
// original_source/include/pv_value2string.h's bool specialization.
func NewBoolFormatter() Formatter[bool] { return boolFormatter{} }

func (boolFormatter) Width() int       { return 1 }
func (boolFormatter) SetWidth(int)     {}
func (boolFormatter) Undefined() string { return "x" }
func (boolFormatter) String(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

type float32Formatter struct{}

// NewFloat32Formatter returns the width-32 Formatter for float32, rendering
// its IEEE-754 bit pattern the way the original's union-based reinterpret
// cast did.
func NewFloat32Formatter() Formatter[float32] { return float32Formatter{} }

func (float32Formatter) Width() int       { return 32 }
func (float32Formatter) SetWidth(int)     {}
func (float32Formatter) Undefined() string { return undefinedOf(32) }
func (float32Formatter) String(v float32) string {
	return bitsToString(uint64(math.Float32bits(v)), 32)
}

type float64Formatter struct{}

// NewFloat64Formatter returns the width-64 Formatter for float64.
func NewFloat64Formatter() Formatter[float64] { return float64Formatter{} }

func (float64Formatter) Width() int       { return 64 }
func (float64Formatter) SetWidth(int)     {}
func (float64Formatter) Undefined() string { return undefinedOf(64) }
func (float64Formatter) String(v float64) string {
	return bitsToString(math.Float64bits(v), 64)
}
