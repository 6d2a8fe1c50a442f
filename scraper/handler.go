package scraper

import (
	"context"

	"condocore/config"
	"condocore/models"
)

// Handler fans a site's configured regions out to RawListings. The
// orchestrator drives Resolve from whatever a Handler returns — it never
// inspects HTML itself.
type Handler interface {
	ID() string
	Scrape(ctx context.Context, region config.Region) ([]models.RawListing, error)
}

// Parser is the capability a site integration implements: turn already-
// fetched HTML into RawListings. Per spec, HTML fetching and per-site
// parsing are external collaborators — this package only defines the
// boundary a Parser must satisfy, it never parses a page itself.
type Parser interface {
	ParseList(html string) ([]models.RawListing, error)
	ParseDetail(html string) (models.RawListing, error)
}

// Fetcher retrieves the raw pages a Parser consumes. Also an external
// collaborator boundary — no concrete Fetcher ships with this package.
type Fetcher interface {
	FetchList(ctx context.Context, site *config.SiteConfig, region config.Region) ([]string, error)
	FetchDetail(ctx context.Context, url string) (string, error)
}

// siteHandler composes a Fetcher and Parser into the Handler contract for
// one configured site.
type siteHandler struct {
	site    *config.SiteConfig
	fetcher Fetcher
	parser  Parser
}

// NewHandler wires a site's configuration to the Fetcher/Parser pair
// registered for it. Callers that have not registered real
// fetch/parse collaborators for a site should not construct a Handler
// for it at all — there is no built-in fallback.
func NewHandler(siteCfg *config.SiteConfig, fetcher Fetcher, parser Parser) Handler {
	return &siteHandler{site: siteCfg, fetcher: fetcher, parser: parser}
}

func (h *siteHandler) ID() string { return h.site.ID }

func (h *siteHandler) Scrape(ctx context.Context, region config.Region) ([]models.RawListing, error) {
	pages, err := h.fetcher.FetchList(ctx, h.site, region)
	if err != nil {
		return nil, err
	}

	var out []models.RawListing
	for _, page := range pages {
		summaries, err := h.parser.ParseList(page)
		if err != nil {
			return nil, err
		}
		for _, summary := range summaries {
			detailHTML, err := h.fetcher.FetchDetail(ctx, summary.URL)
			if err != nil {
				return nil, err
			}
			full, err := h.parser.ParseDetail(detailHTML)
			if err != nil {
				return nil, err
			}
			full.SourceSite = h.site.ID
			out = append(out, full)
		}
	}
	return out, nil
}
