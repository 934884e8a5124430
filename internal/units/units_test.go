package units_test

import (
	"math/big"
	"testing"

	"github.com/evetabi/predict/internal/units"
	"github.com/shopspring/decimal"
)

func TestParseEther(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1", "1", false},
		{" 0.25 ", "0.25", false},
		{"0.000000000000000001", "0.000000000000000001", false},
		{"0.0000000000000000001", "", true},
		{"-1", "", true},
		{"abc", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := units.ParseEther(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseEther(%q) expected error, got %s", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseEther(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("ParseEther(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestWeiRoundTrip(t *testing.T) {
	d := decimal.RequireFromString("39.4")
	wei := units.ToWei(d)

	want, _ := new(big.Int).SetString("39400000000000000000", 10)
	if wei.Cmp(want) != 0 {
		t.Fatalf("ToWei(39.4) = %s, want %s", wei, want)
	}
	if back := units.FromWei(wei); !back.Equal(d) {
		t.Errorf("FromWei(ToWei(39.4)) = %s", back)
	}
	if units.FormatEther(units.FromWei(wei)) != "39.4" {
		t.Errorf("FormatEther = %q, want 39.4", units.FormatEther(units.FromWei(wei)))
	}
}

func TestFromWei_Nil(t *testing.T) {
	if !units.FromWei(nil).IsZero() {
		t.Error("FromWei(nil) should be zero")
	}
}
