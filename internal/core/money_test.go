package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"17000", "17000", true},
		{".5", "0.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestConvert(t *testing.T) {
	rate := decimal.NewFromInt(1300)
	if got := Convert(decimal.NewFromInt(10), "USD", "KRW", rate); !got.Equal(decimal.NewFromInt(13000)) {
		t.Fatalf("Convert() = %s, want 13000", got)
	}
	if got := Convert(decimal.NewFromInt(13900), "krw", "KRW", rate); !got.Equal(decimal.NewFromInt(13900)) {
		t.Fatalf("Convert() = %s, want 13900", got)
	}
}
