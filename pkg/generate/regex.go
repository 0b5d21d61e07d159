package generate

import (
	"fmt"
	"math/rand/v2"
	"regexp/syntax"
	"strings"
)

// fromRegex produces a string accepted by pattern, by walking the parsed
// regexp AST and emitting one concrete rune sequence per node. No pack
// library does constrained random-string-from-regex generation, so this
// walks regexp/syntax's own AST directly rather than depending on a
// generator library the ecosystem doesn't standardize on.
func fromRegex(rnd *rand.Rand, pattern string) (string, error) {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", fmt.Errorf("generate: parsing regex %q: %w", pattern, err)
	}
	var b strings.Builder
	emit(rnd, re.Simplify(), &b, 0)
	return b.String(), nil
}

// emit recursively renders one syntax.Regexp node. depth bounds recursion
// for pathological repeat counts (e.g. "{0,1000}").
func emit(rnd *rand.Rand, re *syntax.Regexp, b *strings.Builder, depth int) {
	if depth > 32 {
		return
	}
	switch re.Op {
	case syntax.OpLiteral:
		for _, r := range re.Rune {
			b.WriteRune(r)
		}
	case syntax.OpCharClass:
		b.WriteRune(pickFromClass(rnd, re.Rune))
	case syntax.OpAnyChar, syntax.OpAnyCharNotNL:
		b.WriteRune(rune('a' + rnd.IntN(26)))
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			emit(rnd, sub, b, depth+1)
		}
	case syntax.OpAlternate:
		if len(re.Sub) > 0 {
			emit(rnd, re.Sub[rnd.IntN(len(re.Sub))], b, depth+1)
		}
	case syntax.OpCapture:
		if len(re.Sub) > 0 {
			emit(rnd, re.Sub[0], b, depth+1)
		}
	case syntax.OpStar:
		n := rnd.IntN(4)
		for i := 0; i < n; i++ {
			emit(rnd, re.Sub[0], b, depth+1)
		}
	case syntax.OpPlus:
		n := 1 + rnd.IntN(4)
		for i := 0; i < n; i++ {
			emit(rnd, re.Sub[0], b, depth+1)
		}
	case syntax.OpQuest:
		if rnd.IntN(2) == 0 {
			emit(rnd, re.Sub[0], b, depth+1)
		}
	case syntax.OpRepeat:
		max := re.Max
		if max < 0 || max > re.Min+4 {
			max = re.Min + 4
		}
		n := re.Min
		if max > re.Min {
			n += rnd.IntN(max - re.Min + 1)
		}
		for i := 0; i < n; i++ {
			emit(rnd, re.Sub[0], b, depth+1)
		}
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary,
		syntax.OpNoWordBoundary:
		// zero-width: nothing to emit
	}
}

func pickFromClass(rnd *rand.Rand, ranges []rune) rune {
	if len(ranges) == 0 {
		return 'x'
	}
	total := 0
	for i := 0; i+1 < len(ranges); i += 2 {
		total += int(ranges[i+1]-ranges[i]) + 1
	}
	if total <= 0 {
		return ranges[0]
	}
	pick := rnd.IntN(total)
	for i := 0; i+1 < len(ranges); i += 2 {
		width := int(ranges[i+1]-ranges[i]) + 1
		if pick < width {
			return ranges[i] + rune(pick)
		}
		pick -= width
	}
	return ranges[0]
}
