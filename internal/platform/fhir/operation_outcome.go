package fhir

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/searchindex/internal/platform/tokenindex"
)

// OperationOutcome severity levels per FHIR R4 spec.
const (
	IssueSeverityFatal       = "fatal"
	IssueSeverityError       = "error"
	IssueSeverityWarning     = "warning"
	IssueSeverityInformation = "information"
)

// OperationOutcome issue type codes used by the search surface.
const (
	IssueTypeInvalid      = "invalid"
	IssueTypeValue        = "value"
	IssueTypeNotFound     = "not-found"
	IssueTypeProcessing   = "processing"
	IssueTypeNotSupported = "not-supported"
	IssueTypeException    = "exception"
	IssueTypeTimeout      = "timeout"
	IssueTypeTooCostly    = "too-costly"
)

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeProcessing, diagnostics)
}

// InvalidFilterOutcome reports a rejected search parameter, pointing the
// issue expression at the parameter code.
func InvalidFilterOutcome(err *tokenindex.InvalidFilterValue) *OperationOutcome {
	oo := NewOperationOutcome(IssueSeverityError, IssueTypeValue, err.Error())
	if err.Code != "" {
		oo.Issue[0].Expression = []string{err.Code}
	}
	return oo
}

// UnknownResourceTypeOutcome is returned for a type without search parameters.
func UnknownResourceTypeOutcome(resourceType string) *OperationOutcome {
	return NewOperationOutcome(IssueSeverityError, IssueTypeNotSupported, "resource type "+resourceType+" is not supported")
}

// ErrorHandler renders every error leaving a handler as an OperationOutcome.
// Filter errors become 400, echo HTTP errors keep their status and everything
// else is a 500 whose cause is logged but not returned.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, outcome := outcomeFor(err)
		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, outcome)
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}

func outcomeFor(err error) (int, *OperationOutcome) {
	var invalid *tokenindex.InvalidFilterValue
	if errors.As(err, &invalid) {
		return http.StatusBadRequest, InvalidFilterOutcome(invalid)
	}

	var unknown *UnknownResourceTypeError
	if errors.As(err, &unknown) {
		return http.StatusNotFound, UnknownResourceTypeOutcome(unknown.ResourceType)
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		code := IssueTypeProcessing
		switch he.Code {
		case http.StatusNotFound:
			code = IssueTypeNotFound
		case http.StatusMethodNotAllowed:
			code = IssueTypeNotSupported
		case http.StatusBadRequest:
			code = IssueTypeInvalid
		case http.StatusRequestEntityTooLarge:
			code = IssueTypeTooCostly
		}
		severity := IssueSeverityError
		if he.Code >= http.StatusInternalServerError {
			severity = IssueSeverityFatal
			code = IssueTypeException
		}
		return he.Code, NewOperationOutcome(severity, code, msg)
	}

	return http.StatusInternalServerError, NewOperationOutcome(IssueSeverityFatal, IssueTypeException, "internal server error")
}
