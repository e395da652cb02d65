package money

import "testing"

func TestParseDKK(t *testing.T) {
	cases := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{"250.00", 25_000, false},
		{"0.01", 1, false},
		{"1000", 100_000, false},
		{"-5.50", -550, false},
		{"0.001", 0, true}, // sub-øre
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDKK(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDKK(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDKK(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDKK(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestAmountString(t *testing.T) {
	if got := Amount(25_000).String(); got != "250.00" {
		t.Errorf("String() = %q, want %q", got, "250.00")
	}
	if got := Amount(-550).String(); got != "-5.50" {
		t.Errorf("String() = %q, want %q", got, "-5.50")
	}
	if got := Amount(1).String(); got != "0.01" {
		t.Errorf("String() = %q, want %q", got, "0.01")
	}
}

func TestClampFee(t *testing.T) {
	cases := []struct {
		name    string
		amount  Amount
		rateBps int64
		min     Amount
		max     Amount
		want    Amount
	}{
		{"two percent in band", 100_000, 200, 500, 5_000, 2_000},
		{"clamped to minimum", 10_000, 200, 500, 5_000, 500},
		{"clamped to maximum", 1_000_000, 200, 500, 5_000, 5_000},
		{"never exceeds amount", 300, 200, 500, 5_000, 300},
		{"exactly at minimum", 25_000, 200, 500, 5_000, 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClampFee(tc.amount, tc.rateBps, tc.min, tc.max)
			if got != tc.want {
				t.Errorf("ClampFee(%d, %d, %d, %d) = %d, want %d",
					tc.amount, tc.rateBps, tc.min, tc.max, got, tc.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, a := range []Amount{0, 1, 99, 100, 25_000, -25_000} {
		parsed, err := ParseDKK(a.String())
		if err != nil {
			t.Fatalf("round trip %d: %v", a, err)
		}
		if parsed != a {
			t.Errorf("round trip %d -> %q -> %d", a, a.String(), parsed)
		}
	}
}
