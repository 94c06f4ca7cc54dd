package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/searchindex/internal/platform/tokenindex"
)

func TestNewOperationOutcome(t *testing.T) {
	oo := NewOperationOutcome("error", "processing", "something went wrong")

	if oo.ResourceType != "OperationOutcome" {
		t.Errorf("expected resourceType OperationOutcome, got %s", oo.ResourceType)
	}
	if len(oo.Issue) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(oo.Issue))
	}
	if oo.Issue[0].Severity != "error" {
		t.Errorf("expected severity error, got %s", oo.Issue[0].Severity)
	}
	if oo.Issue[0].Code != "processing" {
		t.Errorf("expected code processing, got %s", oo.Issue[0].Code)
	}
	if oo.Issue[0].Diagnostics != "something went wrong" {
		t.Errorf("expected diagnostics 'something went wrong', got %s", oo.Issue[0].Diagnostics)
	}
}

func TestInvalidFilterOutcome(t *testing.T) {
	oo := InvalidFilterOutcome(&tokenindex.InvalidFilterValue{Code: "identifier", Value: "x", Reason: "bad"})
	if oo.Issue[0].Code != IssueTypeValue {
		t.Errorf("expected value code, got %s", oo.Issue[0].Code)
	}
	if len(oo.Issue[0].Expression) != 1 || oo.Issue[0].Expression[0] != "identifier" {
		t.Errorf("expected expression to name the parameter, got %v", oo.Issue[0].Expression)
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid filter", fmt.Errorf("compile: %w", &tokenindex.InvalidFilterValue{Code: "code"}), http.StatusBadRequest, IssueTypeValue},
		{"unknown type", &UnknownResourceTypeError{ResourceType: "Foo"}, http.StatusNotFound, IssueTypeNotSupported},
		{"echo not found", echo.ErrNotFound, http.StatusNotFound, IssueTypeNotFound},
		{"echo method", echo.ErrMethodNotAllowed, http.StatusMethodNotAllowed, IssueTypeNotSupported},
		{"body too large", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too big"), http.StatusRequestEntityTooLarge, IssueTypeTooCostly},
		{"internal", errors.New("pool closed"), http.StatusInternalServerError, IssueTypeException},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/fhir/Patient", nil), rec)

			ErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var oo OperationOutcome
			if err := json.Unmarshal(rec.Body.Bytes(), &oo); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if oo.Issue[0].Code != tt.wantCode {
				t.Errorf("expected issue code %s, got %s", tt.wantCode, oo.Issue[0].Code)
			}
			if tt.wantStatus == http.StatusInternalServerError && oo.Issue[0].Diagnostics == "pool closed" {
				t.Error("internal errors must not leak their cause")
			}
		})
	}
}
