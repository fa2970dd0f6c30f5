package slug

import (
	"strings"
	"testing"
)

func TestFromName(t *testing.T) {
	cases := map[string]string{
		"Cash":                   "cash",
		"Student Fees (Tuition)": "student_fees_tuition",
		"  Bank -- HDFC  ":       "bank_hdfc",
		"Salaries & Wages":       "salaries_wages",
		"__x__":                  "x",
	}
	for in, want := range cases {
		if got := FromName(in); got != want {
			t.Errorf("FromName(%q) = %q, want %q", in, got, want)
		}
	}
	long := FromName(strings.Repeat("ab ", 40))
	if len(long) > maxLen || strings.HasSuffix(long, "_") {
		t.Fatalf("bad truncation: %q", long)
	}
}

func TestIsCode(t *testing.T) {
	if !IsCode("student_fees") || !IsCode("cash") {
		t.Fatalf("expected valid codes")
	}
	for _, bad := range []string{"", "a", "Cash", "fee-income", strings.Repeat("a", 41)} {
		if IsCode(bad) {
			t.Errorf("IsCode(%q) should be false", bad)
		}
	}
}
