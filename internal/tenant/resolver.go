package tenant

import (
	"net"
	"net/url"
	"strings"
)

// Resolution sources, in the order they are tried.
const (
	SourceQuery     = "query"
	SourcePath      = "path"
	SourceSubdomain = "subdomain"
	SourceDomain    = "domain"
)

// pathPrefix marks path-based tenant addressing: /t/<slug>/...
const pathPrefix = "/t/"

// reservedLabels are subdomains of the base domain that never name a tenant.
var reservedLabels = map[string]bool{
	"www":   true,
	"app":   true,
	"api":   true,
	"admin": true,
}

// Resolution is the outcome of matching a request against the tenant patterns.
// Exactly one of Slug or Domain is set when Matched is true. Path is the
// request path the router should continue with.
type Resolution struct {
	Matched bool
	Slug    string
	Domain  string
	Path    string
	Source  string
}

// Resolver maps request host/path/query to a tenant reference.
type Resolver struct {
	baseDomain string
}

// NewResolver creates a Resolver for tenants served under baseDomain.
func NewResolver(baseDomain string) *Resolver {
	return &Resolver{baseDomain: strings.ToLower(strings.TrimSuffix(baseDomain, "."))}
}

// Resolve applies the patterns in order; the first match wins:
//
//  1. ?tenant=<slug>
//  2. /t/<slug>/rest  (path rewritten to /rest)
//  3. <slug>.<base domain>
//  4. any other host outside the base domain, as a custom domain
func (r *Resolver) Resolve(host, path string, query url.Values) Resolution {
	res := Resolution{Path: path}

	if slug := strings.ToLower(strings.TrimSpace(query.Get("tenant"))); slug != "" && SlugRegex.MatchString(slug) {
		res.Matched, res.Slug, res.Source = true, slug, SourceQuery
		return res
	}

	if strings.HasPrefix(path, pathPrefix) {
		rest := strings.TrimPrefix(path, pathPrefix)
		slug, tail, _ := strings.Cut(rest, "/")
		if SlugRegex.MatchString(slug) {
			res.Matched, res.Slug, res.Source = true, slug, SourcePath
			res.Path = "/" + tail
			return res
		}
	}

	h := normalizeHost(host)
	if h == "" || h == r.baseDomain || isLocal(h) {
		return res
	}

	if label, ok := strings.CutSuffix(h, "."+r.baseDomain); ok {
		if !strings.Contains(label, ".") && !reservedLabels[label] && SlugRegex.MatchString(label) {
			res.Matched, res.Slug, res.Source = true, label, SourceSubdomain
		}
		return res
	}

	res.Matched, res.Domain, res.Source = true, h, SourceDomain
	return res
}

func normalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	return strings.TrimSuffix(h, ".")
}

func isLocal(host string) bool {
	if host == "localhost" {
		return true
	}
	return net.ParseIP(host) != nil
}
