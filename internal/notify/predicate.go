package notify

import "strings"

// Condition tests the value found at a field path. found is false when the
// path does not exist in the document.
type Condition func(v any, found bool) bool

// Rule is one success marker: a dotted field path and the condition its
// value must satisfy.
type Rule struct {
	Path string
	Cond Condition
}

// Predicate is satisfied when any of its rules matches.
type Predicate []Rule

// Match evaluates the predicate against a decoded JSON document.
func (p Predicate) Match(doc any) bool {
	for _, r := range p {
		v, found := lookup(doc, r.Path)
		if r.Cond(v, found) {
			return true
		}
	}
	return false
}

// When builds a single-rule predicate.
func When(path string, cond Condition) Predicate {
	return Predicate{{Path: path, Cond: cond}}
}

// Or extends the predicate with another alternative.
func (p Predicate) Or(path string, cond Condition) Predicate {
	out := make(Predicate, 0, len(p)+1)
	out = append(out, p...)
	return append(out, Rule{Path: path, Cond: cond})
}

// Equals matches a JSON number equal to n. Strings such as "0" do not match.
func Equals(n float64) Condition {
	return func(v any, found bool) bool {
		f, ok := v.(float64)
		return found && ok && f == n
	}
}

// IsNumber matches any JSON number.
func IsNumber() Condition {
	return func(v any, found bool) bool {
		_, ok := v.(float64)
		return found && ok
	}
}

// Truthy matches values a JavaScript-flavoured API would treat as true.
func Truthy() Condition {
	return func(v any, found bool) bool {
		if !found {
			return false
		}
		switch t := v.(type) {
		case nil:
			return false
		case bool:
			return t
		case float64:
			return t != 0
		case string:
			return t != ""
		default:
			return true
		}
	}
}

// NonEmptyList matches a JSON array with at least one element.
func NonEmptyList() Condition {
	return func(v any, found bool) bool {
		l, ok := v.([]any)
		return found && ok && len(l) > 0
	}
}

func lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
