// Copyright 2026 The taskgraph Authors
// SPDX-License-Identifier: Apache-2.0

package taskgraph

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// URI identifies a target or dependency. Every field mirrors RFC 3986;
// a bare string with no scheme is treated as scheme=file, netloc=localhost.
type URI struct {
	Scheme   string
	Netloc   string
	Path     string
	Params   string
	RawQuery string
	Fragment string
}

// String renders the URI back to its canonical text form.
func (u URI) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Netloc)
	if u.Path != "" && !strings.HasPrefix(u.Path, "/") {
		b.WriteByte('/')
	}
	b.WriteString(u.Path)
	if u.Params != "" {
		b.WriteByte(';')
		b.WriteString(u.Params)
	}
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.Fragment)
	}
	return b.String()
}

// ParseURI parses s per spec.md §3. A string with no "scheme://" prefix is
// file://localhost/<s>. A file URI with any netloc other than "localhost"
// (or empty, which defaults to localhost) is rejected.
func ParseURI(s string) (URI, error) {
	if !strings.Contains(s, "://") {
		return URI{Scheme: "file", Netloc: "localhost", Path: s}, nil
	}

	parsed, err := url.Parse(s)
	if err != nil {
		return URI{}, newErr(KindRegistryConflict, s, "invalid URI: %w", err)
	}

	netloc := parsed.Host
	u := URI{
		Scheme:   parsed.Scheme,
		Netloc:   netloc,
		Path:     parsed.Path,
		RawQuery: parsed.RawQuery,
		Fragment: parsed.Fragment,
	}
	if strings.Contains(u.Path, ";") {
		idx := strings.IndexByte(u.Path, ';')
		u.Params = u.Path[idx+1:]
		u.Path = u.Path[:idx]
	}

	if u.Scheme == "file" {
		if u.Netloc == "" {
			u.Netloc = "localhost"
		}
		if u.Netloc != "localhost" {
			return URI{}, newErr(KindRegistryConflict, s, "file URI with non-localhost netloc %q", u.Netloc)
		}
	}

	return u, nil
}

// MustParseURI is ParseURI but panics on error; reserved for literals known
// at compile time (tests, the demo script).
func MustParseURI(s string) URI {
	u, err := ParseURI(s)
	if err != nil {
		panic(err)
	}
	return u
}

// IsLocalFile reports whether u is a file://localhost URI.
func (u URI) IsLocalFile() bool {
	return u.Scheme == "file" && u.Netloc == "localhost"
}

// Resource is the capability set a scheme backend provides: §4.1's
// mtime/rm plug-in contract.
type Resource interface {
	// MTime returns the effective modification time (seconds, Unix epoch)
	// of u, or a *EngineError with Kind NotFound/IOError.
	MTime(ctx context.Context, u URI, credential string, useHash bool) (float64, error)
	// Remove deletes u. Absence is not an error.
	Remove(ctx context.Context, u URI, credential string) error
}

// schemeTable dispatches by URI scheme to a registered Resource backend.
type schemeTable struct {
	mu       sync.RWMutex
	backends map[string]Resource
}

func newSchemeTable() *schemeTable {
	return &schemeTable{backends: make(map[string]Resource)}
}

// Register installs backend as the handler for scheme, overwriting any
// previous registration — used by tests to install fakes and by hosts to
// add remote schemes.
func (t *schemeTable) Register(scheme string, backend Resource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.backends[scheme] = backend
}

func (t *schemeTable) lookup(scheme string) (Resource, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.backends[scheme]
	return b, ok
}

func (t *schemeTable) MTime(ctx context.Context, u URI, credential string, useHash bool) (float64, error) {
	b, ok := t.lookup(u.Scheme)
	if !ok {
		return 0, newErr(KindIOError, u.String(), "no resource backend registered for scheme %q", u.Scheme)
	}
	return b.MTime(ctx, u, credential, useHash)
}

func (t *schemeTable) Remove(ctx context.Context, u URI, credential string) error {
	b, ok := t.lookup(u.Scheme)
	if !ok {
		return newErr(KindIOError, u.String(), "no resource backend registered for scheme %q", u.Scheme)
	}
	return b.Remove(ctx, u, credential)
}

// sortByProducerPriority orders dependency URIs deterministically: by the
// priority of the job that produces each one (lower first), with URIs that
// have no producing job in jobOf ranked last, tie-broken by URI text so the
// order is fully stable (spec.md §4.3 step 4).
func sortByProducerPriority(deps []URI, jobOf map[string]*Job) []URI {
	out := make([]URI, len(deps))
	copy(out, deps)
	priority := func(u URI) (int, bool) {
		if j, ok := jobOf[u.String()]; ok {
			return j.Priority, true
		}
		return 0, false
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := priority(out[i])
		pj, okj := priority(out[j])
		switch {
		case oki && !okj:
			return true
		case !oki && okj:
			return false
		case oki && okj && pi != pj:
			return pi < pj
		default:
			return out[i].String() < out[j].String()
		}
	})
	return out
}
