package portal

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints builds absolute portal URLs from the configured host
type Endpoints struct {
	base        *url.URL
	coursesPath string
}

// NewEndpoints parses host, which must be an absolute URL
func NewEndpoints(host, coursesPath string) (*Endpoints, error) {
	base, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid portal host %q: %w", host, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid portal host %q: not an absolute URL", host)
	}
	if coursesPath == "" {
		coursesPath = "/"
	}
	return &Endpoints{base: base, coursesPath: coursesPath}, nil
}

// Base returns a copy of the portal root URL
func (e *Endpoints) Base() *url.URL {
	u := *e.base
	return &u
}

// RootURL is requested to validate credentials
func (e *Endpoints) RootURL() string {
	return e.base.String()
}

// HomeURL is the page listing the student's courses
func (e *Endpoints) HomeURL() string {
	return e.Resolve(e.coursesPath)
}

// Resolve turns an href found on a portal page into an absolute URL.
// Hrefs that fail to parse are appended to the host verbatim.
func (e *Endpoints) Resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return e.base.String() + href
	}
	return e.base.ResolveReference(ref).String()
}
