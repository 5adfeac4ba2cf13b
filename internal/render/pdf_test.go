package render

import "testing"

func TestPercentEncodeForDataURL(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"unreserved", "abc-XYZ_0.9~", "abc-XYZ_0.9~"},
		{"spaces", "a b", "a%20b"},
		{"html", "<p>#</p>", "%3Cp%3E%23%3C%2Fp%3E"},
		{"multibyte", "é", "%C3%A9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentEncodeForDataURL(tc.input); got != tc.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}
