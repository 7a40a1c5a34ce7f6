package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/velesdb/veles/internal/columnstore"
	"github.com/velesdb/veles/internal/verrors"
)

// evalContext is what a Condition is evaluated against: either a single
// unaliased row (plain SELECT scan) or a binding set mapping MATCH
// aliases to their bound rows.
type evalContext struct {
	row      *columnstore.Row
	bindings map[string]columnstore.Row
	fulltext FullTextProvider
	now      time.Time
}

func (c evalContext) resolve(ref FieldRef) (any, bool) {
	if ref.Alias == "" {
		if c.row == nil {
			return nil, false
		}
		v, ok := c.row.Fields[ref.Field]
		return v, ok
	}
	row, ok := c.bindings[ref.Alias]
	if !ok {
		return nil, false
	}
	v, ok := row.Fields[ref.Field]
	return v, ok
}

// resolveValue turns a Value into a concrete scalar. By the time
// Evaluate runs, every Value.Subquery must already have been replaced
// by subquery pre-resolution (subquery.go); encountering one here is
// the defense-in-depth case from spec.md §4.F, and resolves to NULL
// rather than panicking.
func (c evalContext) resolveValue(v Value) any {
	if v.Subquery != nil {
		return nil
	}
	if v.Field != nil {
		val, _ := c.resolve(*v.Field)
		return val
	}
	return v.Scalar
}

// Evaluate runs cond against ctx. Every ConditionKind has an explicit
// case; an unrecognized kind returns VELES-027 UnsupportedFeature
// rather than defaulting to true (spec.md §4.F).
func Evaluate(cond *Condition, ctx evalContext) (bool, error) {
	if cond == nil {
		return true, nil
	}
	switch cond.Kind {
	case CondAnd:
		for _, child := range cond.Children {
			ok, err := Evaluate(child, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case CondOr:
		for _, child := range cond.Children {
			ok, err := Evaluate(child, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case CondNot:
		if len(cond.Children) != 1 {
			return false, verrors.New(verrors.UnsupportedFeature, "NOT requires exactly one child condition")
		}
		ok, err := Evaluate(cond.Children[0], ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case CondComparison:
		return evalComparison(cond, ctx)
	case CondLike:
		return evalLike(cond, ctx, false)
	case CondILike:
		return evalLike(cond, ctx, true)
	case CondBetween:
		return evalBetween(cond, ctx)
	case CondIn:
		return evalIn(cond, ctx)
	case CondIsNull:
		v, ok := ctx.resolve(cond.Field)
		return !ok || v == nil, nil
	case CondFullTextMatch:
		return evalFullTextMatch(cond, ctx)
	case CondTemporal:
		return evalTemporal(cond, ctx)
	default:
		return false, verrors.New(verrors.UnsupportedFeature, fmt.Sprintf("unsupported condition kind %d", cond.Kind))
	}
}

// NULL participates in three-valued logic reduced to two-valued at the
// filter boundary: any comparison against a NULL operand is false
// (spec.md §7 "User-visible behavior").
func evalComparison(cond *Condition, ctx evalContext) (bool, error) {
	left, ok := ctx.resolve(cond.Field)
	if !ok || left == nil {
		return false, nil
	}
	right := ctx.resolveValue(cond.Value)
	if right == nil {
		return false, nil
	}

	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		return compareFloat(cond.Op, lf, rf), nil
	}

	ls, lsok := asString(left)
	rs, rsok := asString(right)
	if lsok && rsok {
		return compareString(cond.Op, ls, rs), nil
	}

	return false, verrors.New(verrors.UnsupportedFeature, "comparison between incompatible types")
}

func compareFloat(op CompareOp, a, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	default:
		return false
	}
}

func compareString(op CompareOp, a, b string) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	default:
		return false
	}
}

func evalLike(cond *Condition, ctx evalContext, caseInsensitive bool) (bool, error) {
	left, ok := ctx.resolve(cond.Field)
	if !ok || left == nil {
		return false, nil
	}
	str, ok := asString(left)
	if !ok {
		return false, verrors.New(verrors.UnsupportedFeature, "LIKE against a non-string field")
	}
	pattern, ok := asString(ctx.resolveValue(cond.Value))
	if !ok {
		return false, verrors.New(verrors.UnsupportedFeature, "LIKE with a non-string pattern")
	}
	if caseInsensitive {
		str = strings.ToLower(str)
		pattern = strings.ToLower(pattern)
	}
	return matchLikePattern(pattern, str), nil
}

// matchLikePattern implements SQL LIKE's two wildcards: % (any run of
// characters) and _ (exactly one character), translated to an anchored
// sequence of literal/wildcard segments matched left to right.
func matchLikePattern(pattern, s string) bool {
	return likeMatch([]rune(pattern), []rune(s))
}

func likeMatch(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	switch pattern[0] {
	case '%':
		for i := 0; i <= len(s); i++ {
			if likeMatch(pattern[1:], s[i:]) {
				return true
			}
		}
		return false
	case '_':
		if len(s) == 0 {
			return false
		}
		return likeMatch(pattern[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != pattern[0] {
			return false
		}
		return likeMatch(pattern[1:], s[1:])
	}
}

func evalBetween(cond *Condition, ctx evalContext) (bool, error) {
	left, ok := ctx.resolve(cond.Field)
	if !ok || left == nil {
		return false, nil
	}
	lf, lok := asFloat(left)
	lowV := ctx.resolveValue(cond.Low)
	highV := ctx.resolveValue(cond.High)
	if lowV == nil || highV == nil {
		return false, nil
	}
	low, lowOK := asFloat(lowV)
	high, highOK := asFloat(highV)
	if !lok || !lowOK || !highOK {
		return false, verrors.New(verrors.UnsupportedFeature, "BETWEEN requires numeric operands")
	}
	return lf >= low && lf <= high, nil
}

func evalIn(cond *Condition, ctx evalContext) (bool, error) {
	left, ok := ctx.resolve(cond.Field)
	if !ok || left == nil {
		return false, nil
	}
	for _, v := range cond.Values {
		candidate := ctx.resolveValue(v)
		if candidate == nil {
			continue
		}
		if lf, lok := asFloat(left); lok {
			if cf, cok := asFloat(candidate); cok && lf == cf {
				return true, nil
			}
			continue
		}
		if ls, lok := asString(left); lok {
			if cs, cok := asString(candidate); cok && ls == cs {
				return true, nil
			}
		}
	}
	return false, nil
}

func evalFullTextMatch(cond *Condition, ctx evalContext) (bool, error) {
	if ctx.fulltext == nil {
		return false, verrors.New(verrors.UnsupportedFeature, "full-text MATCH requires a configured provider")
	}
	if ctx.row == nil {
		return false, verrors.New(verrors.UnsupportedFeature, "full-text MATCH requires a row context")
	}
	queryText, ok := asString(ctx.resolveValue(cond.Value))
	if !ok {
		return false, verrors.New(verrors.UnsupportedFeature, "full-text MATCH requires a string query")
	}
	matches, err := ctx.fulltext.Search(cond.Field.Field, queryText)
	if err != nil {
		return false, err
	}
	return matches[ctx.row.ID], nil
}

// evalTemporal resolves NOW()/INTERVAL-flavored values (already
// normalized to absolute timestamps by the parser collaborator, per
// spec.md §4.F) and compares as Unix timestamps.
func evalTemporal(cond *Condition, ctx evalContext) (bool, error) {
	left, ok := ctx.resolve(cond.Field)
	if !ok || left == nil {
		return false, nil
	}
	lt, ok := asTime(left)
	if !ok {
		return false, verrors.New(verrors.UnsupportedFeature, "temporal comparison against a non-temporal field")
	}
	rightVal := ctx.resolveValue(cond.Value)
	if rightVal == nil {
		return false, nil
	}
	rt, ok := asTime(rightVal)
	if !ok {
		return false, verrors.New(verrors.UnsupportedFeature, "temporal comparison against a non-temporal value")
	}
	return compareFloat(cond.Op, float64(lt.UnixNano()), float64(rt.UnixNano())), nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	default:
		return "", false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case int64:
		return time.Unix(t, 0), true
	case float64:
		return time.Unix(int64(t), 0), true
	default:
		return time.Time{}, false
	}
}
