package version

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  Vector
	}{
		{"0.6.2", Vector{Major: 0, Minor: 6, Patch: 2}},
		{"v1.2.3", Vector{Major: 1, Minor: 2, Patch: 3}},
		{" 2.0 ", Vector{Major: 2}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.input, got, tc.want)
		}
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	for _, input := range []string{"", "not-a-version"} {
		if _, err := Parse(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestVectorString(t *testing.T) {
	v := Vector{Major: 0, Minor: 7, Patch: 11}
	if got := v.String(); got != "0.7.11" {
		t.Fatalf("expected 0.7.11, got %q", got)
	}
	if !(Vector{}).IsZero() {
		t.Fatal("expected zero vector to report IsZero")
	}
}
