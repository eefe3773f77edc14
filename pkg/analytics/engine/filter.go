package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/platinummonkey/pulse/pkg/analytics"
)

// predicate reports whether a point's dimensions pass one filter.
type predicate func(dims map[string]string) bool

// compileFilters turns the filter list into a conjunction of
// predicates. Malformed filters (bad regexp, non-numeric bound,
// between without exactly two values) fail fast here, before any data
// is fetched.
func compileFilters(filters []analytics.QueryFilter) ([]predicate, error) {
	preds := make([]predicate, 0, len(filters))
	for _, f := range filters {
		p, err := compileFilter(f)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compileFilter(f analytics.QueryFilter) (predicate, error) {
	dim := f.Dimension
	switch f.Operator {
	case analytics.OpEquals:
		want := toString(f.Value)
		return func(dims map[string]string) bool { return dims[dim] == want }, nil

	case analytics.OpNotEquals:
		want := toString(f.Value)
		return func(dims map[string]string) bool { return dims[dim] != want }, nil

	case analytics.OpContains:
		want := toString(f.Value)
		return func(dims map[string]string) bool { return strings.Contains(dims[dim], want) }, nil

	case analytics.OpGT:
		bound, err := toFloat(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: gt value: %w", dim, err)
		}
		return func(dims map[string]string) bool {
			v, err := strconv.ParseFloat(dims[dim], 64)
			return err == nil && v > bound
		}, nil

	case analytics.OpLT:
		bound, err := toFloat(f.Value)
		if err != nil {
			return nil, fmt.Errorf("filter %s: lt value: %w", dim, err)
		}
		return func(dims map[string]string) bool {
			v, err := strconv.ParseFloat(dims[dim], 64)
			return err == nil && v < bound
		}, nil

	case analytics.OpBetween:
		bounds, ok := toSlice(f.Value)
		if !ok || len(bounds) != 2 {
			return nil, fmt.Errorf("filter %s: between requires a 2-element value", dim)
		}
		lo, err := toFloat(bounds[0])
		if err != nil {
			return nil, fmt.Errorf("filter %s: between lower bound: %w", dim, err)
		}
		hi, err := toFloat(bounds[1])
		if err != nil {
			return nil, fmt.Errorf("filter %s: between upper bound: %w", dim, err)
		}
		return func(dims map[string]string) bool {
			v, err := strconv.ParseFloat(dims[dim], 64)
			return err == nil && v >= lo && v <= hi
		}, nil

	case analytics.OpIn:
		values, ok := toSlice(f.Value)
		if !ok {
			return nil, fmt.Errorf("filter %s: in requires a list value", dim)
		}
		members := make(map[string]struct{}, len(values))
		for _, v := range values {
			members[toString(v)] = struct{}{}
		}
		return func(dims map[string]string) bool {
			_, ok := members[dims[dim]]
			return ok
		}, nil

	case analytics.OpRegex:
		re, err := regexp.Compile(toString(f.Value))
		if err != nil {
			return nil, fmt.Errorf("filter %s: invalid regex: %w", dim, err)
		}
		return func(dims map[string]string) bool { return re.MatchString(dims[dim]) }, nil

	default:
		return nil, fmt.Errorf("filter %s: unknown operator %q", dim, f.Operator)
	}
}

func matchesAll(preds []predicate, dims map[string]string) bool {
	for _, p := range preds {
		if !p(dims) {
			return false
		}
	}
	return true
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("value %v is not numeric", v)
	}
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return s, true
	case []string:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(s))
		for i, item := range s {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}
