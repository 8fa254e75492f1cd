package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	includeDirective = "!#include"
	ifDirective      = "!#if"
	elseDirective    = "!#else"
	endifDirective   = "!#endif"

	// maxIncludeDepth bounds nested includes and breaks include cycles.
	maxIncludeDepth = 4
)

// downloader is the fragment of Client the resolver needs.
type downloader interface {
	DownloadFull(ctx context.Context, url string) ([]string, error)
}

// Resolver expands list-composition directives in raw filter content:
// conditional blocks (!#if / !#else / !#endif) evaluated against a fixed
// condition set, and same-origin !#include splicing.
type Resolver struct {
	dl         downloader
	conditions map[string]bool
}

// NewResolver creates a Resolver. conditions are the identifiers that
// evaluate to true in !#if expressions; all others are false.
func NewResolver(dl downloader, conditions []string) *Resolver {
	set := make(map[string]bool, len(conditions))
	for _, c := range conditions {
		set[c] = true
	}
	return &Resolver{dl: dl, conditions: set}
}

// Resolve returns the resolved content for lines fetched from baseURL.
// Directive lines never appear in the output.
func (r *Resolver) Resolve(ctx context.Context, baseURL string, lines []string) ([]string, error) {
	return r.resolve(ctx, baseURL, lines, 0)
}

func (r *Resolver) resolve(ctx context.Context, baseURL string, lines []string, depth int) ([]string, error) {
	out := make([]string, 0, len(lines))

	// condStack holds the truth of each open !#if block.
	var condStack []bool
	active := func() bool {
		for _, v := range condStack {
			if !v {
				return false
			}
		}
		return true
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, ifDirective):
			expr := strings.TrimSpace(strings.TrimPrefix(trimmed, ifDirective))
			v, err := evalCondition(expr, r.conditions)
			if err != nil {
				return nil, fmt.Errorf("evaluate %q: %w", trimmed, err)
			}
			condStack = append(condStack, v)

		case trimmed == elseDirective:
			if len(condStack) == 0 {
				return nil, fmt.Errorf("unbalanced %s", elseDirective)
			}
			condStack[len(condStack)-1] = !condStack[len(condStack)-1]

		case trimmed == endifDirective:
			if len(condStack) == 0 {
				return nil, fmt.Errorf("unbalanced %s", endifDirective)
			}
			condStack = condStack[:len(condStack)-1]

		case strings.HasPrefix(trimmed, includeDirective):
			if !active() {
				continue
			}
			ref := strings.TrimSpace(strings.TrimPrefix(trimmed, includeDirective))
			included, err := r.include(ctx, baseURL, ref, depth)
			if err != nil {
				return nil, err
			}
			out = append(out, included...)

		default:
			if active() {
				out = append(out, line)
			}
		}
	}

	if len(condStack) != 0 {
		return nil, fmt.Errorf("unterminated %s block", ifDirective)
	}
	return out, nil
}

func (r *Resolver) include(ctx context.Context, baseURL, ref string, depth int) ([]string, error) {
	if depth >= maxIncludeDepth {
		return nil, fmt.Errorf("include depth limit exceeded at %q", ref)
	}

	target, err := ResolveRelative(baseURL, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve include %q: %w", ref, err)
	}
	if err := sameOrigin(baseURL, target); err != nil {
		return nil, err
	}

	lines, err := r.dl.DownloadFull(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("download include %s: %w", target, err)
	}
	return r.resolve(ctx, target, lines, depth+1)
}

// sameOrigin rejects includes that cross scheme or host. A list must not be
// able to splice content from an unrelated server.
func sameOrigin(base, target string) error {
	b, err := url.Parse(base)
	if err != nil {
		return err
	}
	t, err := url.Parse(target)
	if err != nil {
		return err
	}
	if b.Scheme != t.Scheme || b.Host != t.Host {
		return fmt.Errorf("include %s crosses origin of %s", target, base)
	}
	return nil
}
