package sitedetect

import (
	"net/url"
	"strings"

	"stagecrawl/internal/models"
)

// sitePattern matches a hostname (suffix match on dot boundaries) to a site.
// The list is ordered most-specific first: ticket.yes24.com must win over a
// hypothetical yes24.com storefront pattern, and tickets.interpark.com over
// interpark.com proper.
type sitePattern struct {
	site  models.Site
	hosts []string
}

type Detector struct {
	patterns []sitePattern
}

func New() *Detector {
	return &Detector{
		patterns: []sitePattern{
			{site: models.SiteYes24, hosts: []string{"ticket.yes24.com", "m.ticket.yes24.com", "yes24.com"}},
			{site: models.SiteInterpark, hosts: []string{"tickets.interpark.com", "ticket.interpark.com", "mticket.interpark.com", "interpark.com"}},
			{site: models.SiteMelon, hosts: []string{"ticket.melon.com", "mticket.melon.com"}},
		},
	}
}

// Detect classifies a URL into a known source site, falling back to
// official for artist/label-run hosts and unknown for everything else.
func (d *Detector) Detect(rawURL string) models.Site {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return models.SiteUnknown
	}
	host := strings.ToLower(u.Hostname())
	for _, p := range d.patterns {
		for _, h := range p.hosts {
			if hostMatches(host, h) {
				return p.site
			}
		}
	}
	if strings.Contains(host, "official") {
		return models.SiteOfficial
	}
	return models.SiteUnknown
}

func hostMatches(host, pattern string) bool {
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

// ValidateTicketPage is a cheap path-shape pre-filter that avoids wasting
// a fetch on URLs that cannot be detail pages. Sites without a known shape
// are accepted provisionally; passing here is no guarantee the page is
// extractable.
func (d *Detector) ValidateTicketPage(rawURL string) (bool, string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return false, "malformed url"
	}
	path := strings.ToLower(u.Path)
	switch d.Detect(rawURL) {
	case models.SiteYes24:
		if strings.Contains(path, "/goods/") || strings.Contains(path, "/perf/") {
			return true, ""
		}
		return false, "yes24 url must contain /goods/ or /perf/"
	case models.SiteInterpark:
		if strings.Contains(path, "/goods/") {
			return true, ""
		}
		return false, "interpark url must contain /goods/"
	case models.SiteMelon:
		if strings.Contains(path, "/performance/") || u.Query().Get("prodId") != "" {
			return true, ""
		}
		return false, "melon url must contain /performance/ or a prodId parameter"
	default:
		return true, ""
	}
}
