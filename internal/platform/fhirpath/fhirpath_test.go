package fhirpath

import (
	"testing"
)

func observation() map[string]any {
	return map[string]any{
		"resourceType": "Observation",
		"id":           "obs-1",
		"status":       "final",
		"code": map[string]any{
			"coding": []any{
				map[string]any{"system": "http://loinc.org", "code": "8480-6"},
			},
			"text": "Systolic blood pressure",
		},
		"subject": map[string]any{
			"reference":  "Patient/123",
			"identifier": map[string]any{"system": "http://hospital.org/mrn", "value": "MRN-1"},
		},
		"valueCodeableConcept": map[string]any{
			"coding": []any{map[string]any{"system": "http://snomed.info/sct", "code": "373066001"}},
		},
		"component": []any{
			map[string]any{"code": map[string]any{"text": "a"}, "valueQuantity": map[string]any{"value": 120.0}},
			map[string]any{"code": map[string]any{"text": "b"}, "valueString": "high"},
		},
	}
}

func TestEvaluatePaths(t *testing.T) {
	e := NewEngine()
	res := observation()

	tests := []struct {
		name      string
		expr      string
		wantCount int
		wantType  string
	}{
		{"simple field", "Observation.status", 1, ""},
		{"nested array", "Observation.code.coding", 1, ""},
		{"choice type", "Observation.value", 1, "CodeableConcept"},
		{"as operator", "Observation.value as CodeableConcept", 1, "CodeableConcept"},
		{"as operator no match", "Observation.value as Quantity", 0, ""},
		{"ofType", "Observation.value.ofType(CodeableConcept)", 1, "CodeableConcept"},
		{"primitive choice", "Observation.component.value.ofType(string)", 1, "string"},
		{"other root", "Patient.identifier", 0, ""},
		{"resource root", "Resource.id", 1, ""},
		{"resolve filter", "Observation.subject.where(resolve() is Patient)", 1, ""},
		{"resolve types reference", "Observation.subject.resolve()", 1, "Patient"},
		{"resolve filter no match", "Observation.subject.where(resolve() is Group)", 0, ""},
		{"identifier of reference", "(Observation.subject.where(resolve() is Patient)).identifier", 1, ""},
		{"union", "Observation.status | Observation.id", 2, ""},
		{"where equals", "Observation.component.where(code.text = 'b').value", 1, "string"},
		{"missing", "Observation.note", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(res, tt.expr)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("expected %d results, got %d: %#v", tt.wantCount, len(got), got)
			}
			if tt.wantCount > 0 && tt.wantType != "" && got[0].Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, got[0].Type)
			}
		})
	}
}

func TestEvaluateChoiceTypeIsDeterministic(t *testing.T) {
	e := NewEngine()
	res := map[string]any{
		"resourceType":  "Observation",
		"valueString":   "high",
		"valueQuantity": map[string]any{"value": 120.0},
		"valueBoolean":  true,
	}

	for i := 0; i < 50; i++ {
		got, err := e.Evaluate(res, "Observation.value")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Type != "boolean" {
			t.Fatalf("run %d: expected the boolean variant, got %#v", i, got)
		}
	}
}

func TestEvaluateErrors(t *testing.T) {
	e := NewEngine()
	for _, expr := range []string{"", "Observation.", "Observation.code.(", "Observation.foo('x", "Observation.bogus()"} {
		if _, err := e.Evaluate(observation(), expr); err == nil {
			t.Errorf("expected error for %q", expr)
		}
	}
}

func TestEvaluateCachesParse(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 3; i++ {
		if _, err := e.Evaluate(observation(), "Observation.status"); err != nil {
			t.Fatal(err)
		}
	}
	if len(e.parsed) != 1 {
		t.Errorf("expected 1 cached expression, got %d", len(e.parsed))
	}
}

func TestEvaluateExtension(t *testing.T) {
	res := map[string]any{
		"resourceType": "Patient",
		"extension": []any{
			map[string]any{"url": "http://example.org/race", "valueCoding": map[string]any{"code": "2106-3"}},
			map[string]any{"url": "http://example.org/other", "valueString": "x"},
		},
	}
	got, err := NewEngine().Evaluate(res, "Patient.extension('http://example.org/race').value")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Type != "Coding" {
		t.Fatalf("unexpected result %#v", got)
	}
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{true, "true"},
		{120.0, "120"},
		{1.5, "1.5"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := Stringify(tt.in); got != tt.want {
			t.Errorf("Stringify(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
