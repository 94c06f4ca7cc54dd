package pagination

import (
	"net/url"
	"testing"
)

func TestFromValues(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
		wantErr    bool
	}{
		{"defaults", "", DefaultLimit, 0, false},
		{"fhir params", "_count=25&_offset=5", 25, 5, false},
		{"max limit", "_count=500", MaxLimit, 0, false},
		{"zero count", "_count=0", 0, 0, false},
		{"negative offset", "_offset=-5", 0, 0, true},
		{"bad count", "_count=ten", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			p, err := FromValues(values)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromValues() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Limit != tt.wantLimit {
				t.Errorf("expected limit %d, got %d", tt.wantLimit, p.Limit)
			}
			if p.Offset != tt.wantOffset {
				t.Errorf("expected offset %d, got %d", tt.wantOffset, p.Offset)
			}
		})
	}
}

func TestFromValues_ParamError(t *testing.T) {
	values, _ := url.ParseQuery("_offset=x")
	_, err := FromValues(values)
	pe, ok := err.(*ParamError)
	if !ok {
		t.Fatalf("expected *ParamError, got %T", err)
	}
	if pe.Param != "_offset" || pe.Value != "x" {
		t.Errorf("unexpected error fields %+v", pe)
	}
}

func TestPreviousOffset(t *testing.T) {
	tests := []struct {
		offset, limit, want int
	}{
		{40, 20, 20},
		{10, 20, 0},
		{0, 20, 0},
	}
	for _, tt := range tests {
		p := Params{Limit: tt.limit, Offset: tt.offset}
		if got := p.PreviousOffset(); got != tt.want {
			t.Errorf("PreviousOffset(%d,%d) = %d, want %d", tt.offset, tt.limit, got, tt.want)
		}
	}
}

func TestFHIRLinks(t *testing.T) {
	p := Params{Limit: 10, Offset: 10}
	links := p.FHIRLinks("/fhir/Patient", "gender=male", true)

	want := map[string]string{
		"self":     "/fhir/Patient?gender=male&_count=10&_offset=10",
		"next":     "/fhir/Patient?gender=male&_count=10&_offset=20",
		"previous": "/fhir/Patient?gender=male&_count=10&_offset=0",
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %d", len(want), len(links))
	}
	for _, l := range links {
		if want[l.Relation] != l.URL {
			t.Errorf("%s link = %s, want %s", l.Relation, l.URL, want[l.Relation])
		}
	}
}

func TestFHIRLinks_FirstPage(t *testing.T) {
	links := Params{Limit: 20}.FHIRLinks("/fhir/Observation", "", false)
	if len(links) != 1 || links[0].Relation != "self" {
		t.Fatalf("expected only a self link, got %+v", links)
	}
	if links[0].URL != "/fhir/Observation?_count=20&_offset=0" {
		t.Errorf("unexpected self link %s", links[0].URL)
	}
}
