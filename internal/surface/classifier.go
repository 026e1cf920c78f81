// Package surface implements the domain classifier: a pure mapping from
// hostname and page identifier to a surface decision. The application is
// served from two logical front-ends — the public marketing surface and the
// authenticated app surface — living on different hostnames, and every
// navigation must decide whether the requested page belongs where the
// visitor currently is.
//
// The classifier is deliberately dependency-free and side-effect-free: it
// only returns a decision, the caller performs the navigation.
package surface

import (
	"net"
	"strings"
)

// Surface is one of the two logical front-ends.
type Surface string

const (
	// Public is the marketing surface (pricing, blog, legal pages).
	Public Surface = "public"
	// App is the authenticated application surface.
	App Surface = "app"
)

// Decision is the outcome of classifying one navigation. ShouldRedirect set
// with a TargetURL means the caller must navigate there instead of rendering.
type Decision struct {
	Surface        Surface `json:"surface"`
	ShouldRedirect bool    `json:"should_redirect"`
	TargetURL      string  `json:"target_url,omitempty"`
}

// Hosts carries the hostname topology the classifier matches against.
type Hosts struct {
	// PublicHost serves the marketing surface, e.g. "clausewise.io".
	PublicHost string
	// AppHost serves the authenticated surface, e.g. "app.clausewise.io".
	AppHost string
	// PreviewSuffixes mark internal preview/staging deployments where
	// cross-surface redirection is globally disabled, e.g. ".vercel.app".
	PreviewSuffixes []string
	// LocalHosts are development hostnames, e.g. "localhost".
	LocalHosts []string
}

// Classifier resolves page identifiers against the three disjoint page sets
// and the hostname topology. Immutable after construction and safe for
// concurrent use.
type Classifier struct {
	hosts Hosts

	public      map[string]struct{}
	app         map[string]struct{}
	publicInApp map[string]struct{}
}

// Default page sets. The three sets are disjoint by construction; New panics
// if an override violates that, since an ambiguous page id would make the
// redirect rules oscillate.
var (
	defaultPublicPages = []string{"home", "pricing", "about", "blog", "terms", "privacy", "contact"}
	defaultAppPages    = []string{"dashboard", "analysis", "account", "upgrade", "history"}
	// Public-within-app pages render on the app surface without redirect or
	// authentication (login/signup must be reachable while logged out).
	defaultPublicInApp = []string{"login", "signup", "verify", "cookie-policy"}
)

// Option customizes a Classifier.
type Option func(*Classifier)

// WithPages replaces the default page sets. Empty slices keep the defaults.
func WithPages(public, app, publicInApp []string) Option {
	return func(c *Classifier) {
		if len(public) > 0 {
			c.public = toSet(public)
		}
		if len(app) > 0 {
			c.app = toSet(app)
		}
		if len(publicInApp) > 0 {
			c.publicInApp = toSet(publicInApp)
		}
	}
}

// New builds a Classifier for the given hostname topology.
func New(hosts Hosts, opts ...Option) *Classifier {
	c := &Classifier{
		hosts:       hosts,
		public:      toSet(defaultPublicPages),
		app:         toSet(defaultAppPages),
		publicInApp: toSet(defaultPublicInApp),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mustBeDisjoint()
	return c
}

// Classify maps a raw hostname and a case-insensitive page identifier to a
// surface decision.
//
// Rule order matters:
//  1. Preview/staging hostnames short-circuit: redirection is globally
//     disabled there, before any other rule.
//  2. Public-within-app pages never redirect regardless of surface.
//  3. App pages requested on the public surface redirect to the app host.
//  4. Public pages requested on the app surface redirect to the public host.
//
// Local/dev hostnames satisfy "on public surface" for rule 3 but never
// satisfy "on app surface" for rule 4. The asymmetry is intentional: a dev
// host must push you into the app flow for app pages, but must never bounce
// you away from a public page you are looking at locally.
func (c *Classifier) Classify(hostname, pageID string) Decision {
	page := normalizePage(pageID)
	host := normalizeHost(hostname)
	target := c.surfaceOf(page)

	if c.RedirectDisabled(host) {
		return Decision{Surface: target, ShouldRedirect: false}
	}

	if _, ok := c.publicInApp[page]; ok {
		return Decision{Surface: App, ShouldRedirect: false}
	}

	onPublic := host == normalizeHost(c.hosts.PublicHost) || c.isLocal(host)
	onApp := host == normalizeHost(c.hosts.AppHost)

	if onPublic && target == App {
		return Decision{
			Surface:        App,
			ShouldRedirect: true,
			TargetURL:      "https://" + c.hosts.AppHost + PagePath(page),
		}
	}
	if onApp && target == Public {
		return Decision{
			Surface:        Public,
			ShouldRedirect: true,
			TargetURL:      "https://" + c.hosts.PublicHost + PagePath(page),
		}
	}
	return Decision{Surface: target, ShouldRedirect: false}
}

// Protected reports whether a page requires an authenticated session: it is
// protected unless it belongs to the public set or the public-within-app
// set. Unknown page ids are protected by default.
func (c *Classifier) Protected(pageID string) bool {
	page := normalizePage(pageID)
	if _, ok := c.public[page]; ok {
		return false
	}
	if _, ok := c.publicInApp[page]; ok {
		return false
	}
	return true
}

// RedirectDisabled reports whether the hostname matches a preview/staging
// pattern, which disables cross-surface redirection entirely.
func (c *Classifier) RedirectDisabled(hostname string) bool {
	host := normalizeHost(hostname)
	for _, suffix := range c.hosts.PreviewSuffixes {
		s := strings.ToLower(strings.TrimSpace(suffix))
		if s != "" && strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// surfaceOf resolves the surface a page belongs to. Unknown pages classify
// as app pages (protected by default).
func (c *Classifier) surfaceOf(page string) Surface {
	if _, ok := c.public[page]; ok {
		return Public
	}
	if _, ok := c.publicInApp[page]; ok {
		return App
	}
	return App
}

func (c *Classifier) isLocal(host string) bool {
	for _, l := range c.hosts.LocalHosts {
		if host == normalizeHost(l) {
			return true
		}
	}
	return false
}

func (c *Classifier) mustBeDisjoint() {
	for page := range c.public {
		if _, ok := c.app[page]; ok {
			panic("surface: page " + page + " in both public and app sets")
		}
		if _, ok := c.publicInApp[page]; ok {
			panic("surface: page " + page + " in both public and public-within-app sets")
		}
	}
	for page := range c.app {
		if _, ok := c.publicInApp[page]; ok {
			panic("surface: page " + page + " in both app and public-within-app sets")
		}
	}
}

// PagePath returns the canonical path for a page identifier ("home" maps to
// the root path).
func PagePath(pageID string) string {
	page := normalizePage(pageID)
	if page == "home" || page == "" {
		return "/"
	}
	return "/" + page
}

// PageFromPath extracts the page identifier from a request path: the first
// path segment, lowercased; the root path is "home".
func PageFromPath(path string) string {
	p := strings.Trim(strings.TrimSpace(path), "/")
	if p == "" {
		return "home"
	}
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(p)
}

func toSet(pages []string) map[string]struct{} {
	set := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		set[normalizePage(p)] = struct{}{}
	}
	return set
}

func normalizePage(pageID string) string {
	return strings.ToLower(strings.TrimSpace(pageID))
}

// normalizeHost lowercases and strips an optional port from a raw hostname.
func normalizeHost(hostname string) string {
	h := strings.ToLower(strings.TrimSpace(hostname))
	if host, _, err := net.SplitHostPort(h); err == nil {
		return host
	}
	return h
}
