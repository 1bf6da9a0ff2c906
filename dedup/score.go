// Package dedup implements duplicate detection for recorded UI elements: a
// weighted similarity scorer over element attribute maps, a greedy grouping
// pass over a batch of recorded actions, and the review flow that backfills
// shared element ids into confirmed groups.
package dedup

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Importance weights per attribute key. Keys absent from the table get
// defaultWeight. Identity-bearing attributes dominate; geometry and style
// only nudge the score.
var attributeWeights = map[string]float64{
	"tagName":       3,
	"id":            3,
	"xpath":         3,
	"name":          2.5,
	"innerText":     2,
	"textContent":   2,
	"class":         2,
	"type":          1.5,
	"href":          1.5,
	"src":           1.5,
	"value":         1,
	"url":           1,
	"parentTagName": 1,
	"parentId":      1,
	"parentClass":   0.75,
	"x":             0.5,
	"y":             0.5,
	"viewportX":     0.5,
	"viewportY":     0.5,
	"width":         0.5,
	"height":        0.5,
	"visible":       0.5,
	"display":       0.5,
}

const defaultWeight = 0.25

// Position-like keys compare within an absolute tolerance; size-like keys
// within a tolerance relative to the larger magnitude.
var (
	positionKeys = map[string]bool{"x": true, "y": true, "viewportX": true, "viewportY": true}
	sizeKeys     = map[string]bool{"width": true, "height": true}
)

const (
	positionTolerance = 10.0
	sizeTolerance     = 0.10
)

// Score computes the weighted similarity of two element attribute maps as a
// value in [0, 1]. A nil map on either side scores 0. The function is pure
// and symmetric: Score(a, b) == Score(b, a).
func Score(a, b map[string]any) float64 {
	if a == nil || b == nil {
		return 0
	}

	keys := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		keys[k] = struct{}{}
	}
	for k := range b {
		keys[k] = struct{}{}
	}

	var num, den float64
	for key := range keys {
		w := weightOf(key)
		av, aok := a[key]
		bv, bok := b[key]
		aok = aok && av != nil
		bok = bok && bv != nil

		den += w
		switch {
		case !aok && !bok:
			// Both sides agree the attribute is absent.
			num += w
		case aok && bok:
			if valuesEqual(key, av, bv) {
				num += w
			}
		}
		// Exactly one side populated: weight counts, match does not.
	}

	if den == 0 {
		return 0
	}
	return num / den
}

func weightOf(key string) float64 {
	if w, ok := attributeWeights[key]; ok {
		return w
	}
	return defaultWeight
}

func valuesEqual(key string, a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case positionKeys[key]:
			return math.Abs(af-bf) <= positionTolerance
		case sizeKeys[key]:
			larger := math.Max(math.Abs(af), math.Abs(bf))
			if larger == 0 {
				return true
			}
			return math.Abs(af-bf) <= sizeTolerance*larger
		default:
			return af == bf
		}
	}

	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok {
			return false
		}
		return arraysEqual(av, bv)
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok {
			return false
		}
		return objectsEqual(av, bv)
	}
	return primitiveEqual(a, b)
}

// arraysEqual compares two arrays order-independently: both sides are
// sorted by canonical form before the pairwise comparison.
func arraysEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	as := sortedCanonical(a)
	bs := sortedCanonical(b)
	for i := range as {
		if !primitiveEqual(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func sortedCanonical(vals []any) []any {
	out := make([]any, len(vals))
	copy(out, vals)
	sort.Slice(out, func(i, j int) bool {
		return canonical(out[i]) < canonical(out[j])
	})
	return out
}

func objectsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !primitiveEqual(av, bv) {
			return false
		}
	}
	return true
}

// primitiveEqual is the scalar rule used inside arrays and nested objects:
// numbers compare exactly, everything else compares as a trimmed,
// case-insensitive string.
func primitiveEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return canonical(a) == canonical(b)
}

func canonical(v any) string {
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
