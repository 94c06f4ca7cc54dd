package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name    string
		handler echo.HandlerFunc
	}{
		{"success", func(c echo.Context) error { return c.NoContent(http.StatusOK) }},
		{"error", func(c echo.Context) error { return echo.NewHTTPError(http.StatusNotFound) }},
	}

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/fhir/Patient", nil), rec)

			_ = SecurityHeaders()(tt.handler)(c)
			for header, v := range want {
				if got := rec.Header().Get(header); got != v {
					t.Errorf("%s = %q, want %q", header, got, v)
				}
			}
		})
	}
}
