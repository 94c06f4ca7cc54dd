package tokenindex

import (
	"reflect"
	"testing"
)

func TestSplitOptions(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{`a\,b,c`, []string{`a\,b`, "c"}},
		{"", []string{""}},
		{"a,", []string{"a", ""}},
		{`sys|a\,b`, []string{`sys|a\,b`}},
	}
	for _, tt := range tests {
		if got := splitOptions(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitOptions(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitSystem(t *testing.T) {
	tests := []struct {
		in         string
		wantSystem string
		wantValue  string
		wantOK     bool
	}{
		{"http://example.org|123", "http://example.org", "123", true},
		{"http://example.org|", "http://example.org", "", true},
		{"|123", "", "123", true},
		{"123", "", "123", false},
		{`a\|b|c`, "a|b", "c", true},
		{"a|b|c", "a", "b|c", true},
		{`a\,b`, "", "a,b", false},
	}
	for _, tt := range tests {
		system, value, ok := splitSystem(tt.in)
		if system != tt.wantSystem || value != tt.wantValue || ok != tt.wantOK {
			t.Errorf("splitSystem(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, system, value, ok, tt.wantSystem, tt.wantValue, tt.wantOK)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("escapeLike = %q", got)
	}
}

func TestResourceTable(t *testing.T) {
	tests := map[string]string{
		"Patient":           "patient",
		"MedicationRequest": "medication_request",
		"Observation":       "observation",
	}
	for in, want := range tests {
		if got := ResourceTable(in); got != want {
			t.Errorf("ResourceTable(%q) = %q, want %q", in, got, want)
		}
	}
	if got := TokenTable("MedicationRequest"); got != "medication_request_token" {
		t.Errorf("TokenTable = %q", got)
	}
}
