package qty

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.2345678", "1.234568"},
		{"1.2345674", "1.234567"},
		{"100", "100"},
		{"-0.0000004", "0"},
		{"0.000001", "0.000001"},
	}
	for _, tc := range cases {
		in, _ := decimal.NewFromString(tc.in)
		want, _ := decimal.NewFromString(tc.want)
		got := Normalize(in)
		if !got.Equal(want) {
			t.Errorf("Normalize(%s) = %s, want %s", tc.in, got.String(), tc.want)
		}
	}
}

func TestIsEffectivelyZero(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"0.000001", true},
		{"-0.000001", true},
		{"0.000002", false},
		{"-0.000002", false},
		{"1", false},
	}
	for _, tc := range cases {
		in, _ := decimal.NewFromString(tc.in)
		if got := IsEffectivelyZero(in); got != tc.want {
			t.Errorf("IsEffectivelyZero(%s) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAtLeast(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"100", "100", true},
		{"100", "99", true},
		{"99.999999", "100", true},  // 差1e-6仍算足够
		{"99.999998", "100", false}, // 差2e-6超出容差
		{"100.000002", "100", true},
	}
	for _, tc := range cases {
		a, _ := decimal.NewFromString(tc.a)
		b, _ := decimal.NewFromString(tc.b)
		if got := AtLeast(a, b); got != tc.want {
			t.Errorf("AtLeast(%s, %s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestFromFloat(t *testing.T) {
	got := FromFloat(2.5)
	if !got.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("FromFloat(2.5) = %s", got.String())
	}
	got = FromFloat(1.00000049)
	if !got.Equal(decimal.NewFromInt(1)) {
		t.Errorf("FromFloat(1.00000049) = %s, want 1", got.String())
	}
}
