package fhir

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/searchindex/internal/platform/searchparam"
	"github.com/ehr/searchindex/internal/platform/sqlexpr"
)

// Handler serves token searches over HTTP.
type Handler struct {
	searcher *Searcher
	registry *searchparam.Registry
	logger   zerolog.Logger
}

func NewHandler(searcher *Searcher, registry *searchparam.Registry, logger zerolog.Logger) *Handler {
	return &Handler{searcher: searcher, registry: registry, logger: logger}
}

// RegisterRoutes mounts the search routes on g, normally the /fhir group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/metadata", h.Capabilities)
	g.GET("/:type", h.Search)
	g.POST("/:type/_search", h.SearchPost)
	g.GET("/:type/_explain", h.Explain)
}

// ExplainResponse is the body of the _explain endpoint.
type ExplainResponse struct {
	ResourceType string   `json:"resourceType"`
	SQL          string   `json:"sql"`
	Args         []any    `json:"args"`
	Ignored      []string `json:"ignored,omitempty"`
}

func (h *Handler) Capabilities(c echo.Context) error {
	return c.JSON(http.StatusOK, NewCapabilityStatement(h.registry))
}

func (h *Handler) Search(c echo.Context) error {
	return h.search(c, c.QueryParams(), c.Request().URL.Path)
}

// SearchPost handles POST [type]/_search with form-encoded parameters, which
// are merged with any query string parameters.
func (h *Handler) SearchPost(c echo.Context) error {
	values, err := c.FormParams()
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form body")
	}
	return h.search(c, values, strings.TrimSuffix(c.Request().URL.Path, "/_search"))
}

func (h *Handler) search(c echo.Context, values url.Values, basePath string) error {
	rt := c.Param("type")
	q, err := h.searcher.Parse(rt, values, ParsePreferHandling(c.Request().Header.Get("Prefer")))
	if err != nil {
		return err
	}

	res, err := h.searcher.Search(c.Request().Context(), q)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, NewSearchBundle(rt, res.IDs, SearchBundleParams{
		BaseURL:  basePath,
		QueryStr: linkQuery(values),
		Page:     q.Page,
		HasMore:  res.HasMore,
	}))
}

// Explain compiles the search without running it and returns the SQL and
// its bound arguments.
func (h *Handler) Explain(c echo.Context) error {
	rt := c.Param("type")
	q, err := h.searcher.Parse(rt, c.QueryParams(), ParsePreferHandling(c.Request().Header.Get("Prefer")))
	if err != nil {
		return err
	}
	sel, err := h.searcher.Compile(q)
	if err != nil {
		return err
	}
	sql, args := sqlexpr.Render(sel)
	if args == nil {
		args = []any{}
	}
	return c.JSON(http.StatusOK, ExplainResponse{
		ResourceType: rt,
		SQL:          sql,
		Args:         args,
		Ignored:      q.Ignored,
	})
}

// linkQuery re-encodes the search parameters for bundle links, leaving the
// paging parameters to the link builder.
func linkQuery(values url.Values) string {
	out := make(url.Values, len(values))
	for k, v := range values {
		if k == "_count" || k == "_offset" {
			continue
		}
		out[k] = v
	}
	return out.Encode()
}
