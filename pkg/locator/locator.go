// Package locator describes how page elements are found.
//
// A Locator pairs a lookup strategy with an expression, the same way a
// WebDriver "By" pair does, and renders it as a Playwright selector string.
// A List is an ordered set of candidates tried until one resolves.
package locator

import (
	"fmt"
	"strings"
)

// Strategy identifies how an expression is interpreted.
type Strategy string

const (
	// XPath matches elements with an XPath expression
	XPath Strategy = "xpath"
	// Name matches elements by their name attribute
	Name Strategy = "name"
	// ID matches elements by their id attribute
	ID Strategy = "id"
	// Tag matches elements by tag name
	Tag Strategy = "tag"
	// CSS matches elements with a CSS selector
	CSS Strategy = "css"
	// Text matches elements by their visible text
	Text Strategy = "text"
)

// Locator is a single (strategy, expression) pair.
type Locator struct {
	Strategy Strategy
	Expr     string
}

// List is an ordered fallback list. The first candidate that resolves wins.
type List []Locator

// ByXPath returns an XPath locator.
func ByXPath(expr string) Locator { return Locator{Strategy: XPath, Expr: expr} }

// ByName returns a name-attribute locator.
func ByName(name string) Locator { return Locator{Strategy: Name, Expr: name} }

// ByID returns an id-attribute locator.
func ByID(id string) Locator { return Locator{Strategy: ID, Expr: id} }

// ByTag returns a tag-name locator.
func ByTag(tag string) Locator { return Locator{Strategy: Tag, Expr: tag} }

// ByCSS returns a CSS locator.
func ByCSS(expr string) Locator { return Locator{Strategy: CSS, Expr: expr} }

// ByText returns a visible-text locator.
func ByText(text string) Locator { return Locator{Strategy: Text, Expr: text} }

// Selector renders the locator as a Playwright selector.
func (l Locator) Selector() string {
	switch l.Strategy {
	case XPath:
		return "xpath=" + l.Expr
	case Name:
		return fmt.Sprintf("[name=%s]", quoteAttr(l.Expr))
	case ID:
		return fmt.Sprintf("[id=%s]", quoteAttr(l.Expr))
	case Tag:
		return "css=" + l.Expr
	case Text:
		return "text=" + quoteAttr(l.Expr)
	default:
		return "css=" + l.Expr
	}
}

// String implements fmt.Stringer.
func (l Locator) String() string {
	return fmt.Sprintf("%s(%s)", l.Strategy, l.Expr)
}

// Validate checks the locator has a known strategy and a non-empty expression.
func (l Locator) Validate() error {
	switch l.Strategy {
	case XPath, Name, ID, Tag, CSS, Text:
	default:
		return fmt.Errorf("unknown locator strategy %q", l.Strategy)
	}
	if strings.TrimSpace(l.Expr) == "" {
		return fmt.Errorf("locator %s has an empty expression", l.Strategy)
	}
	return nil
}

// Validate checks every candidate in the list.
func (ls List) Validate() error {
	if len(ls) == 0 {
		return fmt.Errorf("fallback list is empty")
	}
	for i, l := range ls {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	return nil
}

func quoteAttr(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
