package vcd

import "testing"

func TestBitWidthBoolIsOne(t *testing.T) {
	if w := BitWidth[bool](); w != 1 {
		t.Fatalf("BitWidth[bool]() = %d, want 1", w)
	}
}

func TestBitWidthMatchesSizeofForIntegers(t *testing.T) {
	if w := BitWidth[uint8](); w != 8 {
		t.Fatalf("BitWidth[uint8]() = %d, want 8", w)
	}
	if w := BitWidth[uint32](); w != 32 {
		t.Fatalf("BitWidth[uint32]() = %d, want 32", w)
	}
	if w := BitWidth[int64](); w != 64 {
		t.Fatalf("BitWidth[int64]() = %d, want 64", w)
	}
}

func TestWidth2Index(t *testing.T) {
	if got := width2index(1); got != "" {
		t.Fatalf("width2index(1) = %q, want empty", got)
	}
	if got := width2index(8); got != " [7:0]" {
		t.Fatalf("width2index(8) = %q, want %q", got, " [7:0]")
	}
}

func TestDefaultFormatterRendersMSBFirst(t *testing.T) {
	f := NewDefaultFormatter[uint32]()
	f.SetWidth(4)
	if got := f.String(0b1010); got != "b1010" {
		t.Fatalf("String(0b1010) = %q, want %q", got, "b1010")
	}
	if got := f.Undefined(); got != "bxxxx" {
		t.Fatalf("Undefined() = %q, want %q", got, "bxxxx")
	}
}

func TestDefaultFormatterWidthOneHasNoPrefix(t *testing.T) {
	f := NewDefaultFormatter[uint8]()
	f.SetWidth(1)
	if got := f.String(1); got != "1" {
		t.Fatalf("String(1) = %q, want %q", got, "1")
	}
	if got := f.String(0); got != "0" {
		t.Fatalf("String(0) = %q, want %q", got, "0")
	}
	if got := f.Undefined(); got != "x" {
		t.Fatalf("Undefined() = %q, want %q", got, "x")
	}
}

func TestBoolFormatter(t *testing.T) {
	f := NewBoolFormatter()
	if f.Width() != 1 {
		t.Fatalf("Width() = %d, want 1", f.Width())
	}
	if got := f.String(true); got != "1" {
		t.Fatalf("String(true) = %q, want %q", got, "1")
	}
	if got := f.String(false); got != "0" {
		t.Fatalf("String(false) = %q, want %q", got, "0")
	}
}

func TestFloat32FormatterRendersIEEEBits(t *testing.T) {
	f := NewFloat32Formatter()
	if f.Width() != 32 {
		t.Fatalf("Width() = %d, want 32", f.Width())
	}
	// 1.0f is 0x3F800000.
	got := f.String(1.0)
	want := "b00111111100000000000000000000000"
	if got != want {
		t.Fatalf("String(1.0) = %q, want %q", got, want)
	}
}

func TestFloat64Formatter(t *testing.T) {
	f := NewFloat64Formatter()
	if f.Width() != 64 {
		t.Fatalf("Width() = %d, want 64", f.Width())
	}
	if got := f.String(0); got[0] != 'b' || len(got) != 65 {
		t.Fatalf("String(0) = %q, want a 64-bit b-prefixed token", got)
	}
}
