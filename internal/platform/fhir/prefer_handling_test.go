package fhir

import "testing"

func TestParsePreferHandling(t *testing.T) {
	tests := []struct {
		input string
		want  HandlingPreference
	}{
		{"", HandlingLenient},
		{"handling=strict", HandlingStrict},
		{"handling=lenient", HandlingLenient},
		{"return=minimal; handling=strict", HandlingStrict},
		{"return=minimal, handling=strict", HandlingStrict},
		{"handling=bogus", HandlingLenient},
		{"respond-async", HandlingLenient},
	}
	for _, tt := range tests {
		if got := ParsePreferHandling(tt.input); got != tt.want {
			t.Errorf("ParsePreferHandling(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}
