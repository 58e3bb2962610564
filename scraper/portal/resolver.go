package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Resolver locates elements by semantic role through ordered strategy lists.
// A strategy wins only when it yields exactly one match; ambiguous strategies
// are skipped rather than silently picking the first of many. Resolution is
// stateless and side-effect-free.
type Resolver struct {
	tables map[string][]Strategy
}

// NewResolver creates a Resolver over the default strategy tables.
func NewResolver() *Resolver {
	return &Resolver{tables: strategyTables}
}

// Resolve locates role's element in the live page.
func (r *Resolver) Resolve(ctx context.Context, drv Driver, role string) (Handle, error) {
	return r.ResolveText(ctx, drv, role, "")
}

// ResolveText locates role's element, additionally requiring the given text
// content as a substring. Roles backed by repeated markup (options, rows) only
// become unique with a text constraint.
func (r *Resolver) ResolveText(ctx context.Context, drv Driver, role, text string) (Handle, error) {
	return r.resolve(ctx, drv, role, text, false)
}

// ResolveExact is ResolveText with whole-text equality. Calendar days and
// month/year options need it: "1" is a substring of half the calendar.
func (r *Resolver) ResolveExact(ctx context.Context, drv Driver, role, text string) (Handle, error) {
	return r.resolve(ctx, drv, role, text, true)
}

func (r *Resolver) resolve(ctx context.Context, drv Driver, role, text string, exact bool) (Handle, error) {
	strategies := r.tables[role]
	for _, s := range strategies {
		h := Handle{CSS: s.CSS, Text: s.Text, Exact: s.Exact}
		if text != "" {
			h.Text = text
			h.Exact = exact
		}
		n, err := drv.Count(ctx, h)
		if err != nil {
			return Handle{}, fmt.Errorf("resolve %q via %s: %w", role, s.Name, err)
		}
		if n == 1 {
			return h, nil
		}
		// 0 or ambiguous: try the next strategy.
	}
	return Handle{}, &ElementNotFoundError{Role: role, Strategies: len(strategies)}
}

// ResolveIn locates role's element within a parsed document fragment, with the
// same exactly-one semantics as live resolution. The extractor uses this to
// scope field lookups to one results row.
func (r *Resolver) ResolveIn(scope *goquery.Selection, role string) (*goquery.Selection, error) {
	strategies := r.tables[role]
	for _, s := range strategies {
		sel := scope.Find(s.CSS)
		if s.Text != "" {
			text, exact := s.Text, s.Exact
			sel = sel.FilterFunction(func(_ int, el *goquery.Selection) bool {
				if exact {
					return strings.TrimSpace(el.Text()) == text
				}
				return strings.Contains(el.Text(), text)
			})
		}
		if sel.Length() == 1 {
			return sel, nil
		}
	}
	return nil, &ElementNotFoundError{Role: role, Strategies: len(strategies)}
}

// ResolveAllIn returns every match of the first strategy that yields at least
// one. Row collections are legitimately plural, so the exactly-one rule does
// not apply to them.
func (r *Resolver) ResolveAllIn(scope *goquery.Selection, role string) (*goquery.Selection, error) {
	strategies := r.tables[role]
	for _, s := range strategies {
		sel := scope.Find(s.CSS)
		if sel.Length() > 0 {
			return sel, nil
		}
	}
	return nil, &ElementNotFoundError{Role: role, Strategies: len(strategies)}
}
