package jwtauth

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

type matchRule struct {
	method string
	path   *regexp.Regexp
	body   *regexp.Regexp
}

// Matcher decides which requests receive a token and which revoke one. It is
// immutable after construction and safe for concurrent use.
type Matcher struct {
	scopes     map[string]struct{}
	rules      []matchRule
	revocation *regexp.Regexp
	needsBody  bool
}

// NewMatcher compiles the matching rules of cfg.
func NewMatcher(cfg Config) (*Matcher, error) {
	m := &Matcher{
		scopes: make(map[string]struct{}, len(cfg.Mappings)),
		rules:  make([]matchRule, 0, len(cfg.DispatchRequests)),
	}
	for scope := range cfg.Mappings {
		m.scopes[scope] = struct{}{}
	}

	for i, req := range cfg.DispatchRequests {
		path, err := regexp.Compile(req.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: dispatch request %d path: %v", ErrConfiguration, i, err)
		}
		rule := matchRule{
			method: strings.ToUpper(strings.TrimSpace(req.Method)),
			path:   path,
		}
		if req.Body != "" {
			body, err := regexp.Compile(req.Body)
			if err != nil {
				return nil, fmt.Errorf("%w: dispatch request %d body: %v", ErrConfiguration, i, err)
			}
			rule.body = body
			m.needsBody = true
		}
		m.rules = append(m.rules, rule)
	}

	if cfg.RevocationPath != "" {
		re, err := regexp.Compile(cfg.RevocationPath)
		if err != nil {
			return nil, fmt.Errorf("%w: revocation path: %v", ErrConfiguration, err)
		}
		m.revocation = re
	}

	return m, nil
}

// ShouldIssue reports whether a login in scope on the given request qualifies for a
// token. The body is only read when a rule with a body pattern reaches that check; it
// is read from the start and left at the position it had before the call. body may be
// nil when no rule has a body pattern.
func (m *Matcher) ShouldIssue(scope, method, path string, body io.ReadSeeker) (bool, error) {
	return m.shouldIssue(scope, method, path, func() (io.ReadSeeker, error) { return body, nil })
}

// shouldIssue calls fetch at most once, and only after a rule with a body pattern
// matched on method and path.
func (m *Matcher) shouldIssue(scope, method, path string, fetch func() (io.ReadSeeker, error)) (bool, error) {
	if _, ok := m.scopes[scope]; !ok {
		return false, nil
	}

	method = strings.ToUpper(method)
	var content []byte
	read := false

	for _, rule := range m.rules {
		if rule.method != method || !rule.path.MatchString(path) {
			continue
		}
		if rule.body == nil {
			return true, nil
		}
		if !read {
			body, err := fetch()
			if err != nil {
				return false, err
			}
			if content, err = readRestoring(body); err != nil {
				return false, err
			}
			read = true
		}
		if rule.body.Match(content) {
			return true, nil
		}
	}

	return false, nil
}

// ShouldRevoke reports whether path is a revocation path.
func (m *Matcher) ShouldRevoke(path string) bool {
	return m.revocation != nil && m.revocation.MatchString(path)
}

// NeedsBody reports whether any rule inspects the request body.
func (m *Matcher) NeedsBody() bool {
	return m.needsBody
}

func readRestoring(body io.ReadSeeker) ([]byte, error) {
	if body == nil {
		return nil, nil
	}

	pos, err := body.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyNotRewindable, err)
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyNotRewindable, err)
	}

	content, readErr := io.ReadAll(body)
	if _, err := body.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBodyNotRewindable, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("read request body: %w", readErr)
	}

	return content, nil
}
