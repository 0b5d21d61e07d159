package match

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pact-foundation/pact-go/pkg/matchers"
)

// segment is one step of a parsed selector: either a field name or an
// array index (possibly a "[*]" wildcard that matches any index).
type segment struct {
	name       string
	index      int
	isIndex    bool
	isWildcard bool
}

// parseSelector splits a "$.foo.bar[0]" style selector into segments. A
// selector with no leading "$" is treated as a single opaque name segment,
// which is how header and query parameter names (which may themselves
// contain dots or dashes) are looked up.
func parseSelector(sel string) []segment {
	if !strings.HasPrefix(sel, "$") {
		return []segment{{name: sel}}
	}
	rest := strings.TrimPrefix(sel, "$")
	var segs []segment
	for len(rest) > 0 {
		switch rest[0] {
		case '.':
			rest = rest[1:]
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				segs = append(segs, segment{name: rest})
				rest = ""
				break
			}
			inner := rest[1:end]
			if inner == "*" {
				segs = append(segs, segment{isIndex: true, isWildcard: true})
			} else if n, err := strconv.Atoi(inner); err == nil {
				segs = append(segs, segment{isIndex: true, index: n})
			} else {
				segs = append(segs, segment{name: inner})
			}
			rest = rest[end+1:]
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			segs = append(segs, segment{name: rest[:end]})
			rest = rest[end:]
		}
	}
	return segs
}

func segmentsMatch(key, concrete []segment) bool {
	if len(key) != len(concrete) {
		return false
	}
	for i := range key {
		k, c := key[i], concrete[i]
		switch {
		case k.isIndex && c.isIndex:
			if !k.isWildcard && k.index != c.index {
				return false
			}
		case !k.isIndex && !c.isIndex:
			if k.name != c.name {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func specificity(segs []segment) int {
	n := 0
	for _, s := range segs {
		if !s.isWildcard {
			n++
		}
	}
	return n
}

// lookupRule finds the RuleSet governing selector within tree. When more
// than one tree key matches (a wildcarded key and a literal key can both
// match the same concrete path) the most specific — the one with fewer
// wildcard segments — wins. A key only matches a selector with the same
// number of segments; it is not applied by prefix to paths nested below it.
func lookupRule(tree matchers.RuleTree, selector string) (matchers.RuleSet, bool) {
	if rs, ok := tree[selector]; ok {
		return rs, true
	}
	concrete := parseSelector(selector)
	var best matchers.RuleSet
	bestScore := -1
	found := false
	for key, rs := range tree {
		keySegs := parseSelector(key)
		if !segmentsMatch(keySegs, concrete) {
			continue
		}
		score := specificity(keySegs)
		if score > bestScore {
			best, bestScore, found = rs, score, true
		}
	}
	return best, found
}

func childSelector(parent, key string) string {
	if parent == "$" {
		return "$." + key
	}
	return parent + "." + key
}

func indexSelector(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}
