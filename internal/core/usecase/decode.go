package usecase

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

// maxMembers bounds a decoded household size.
const maxMembers = 20

// Model output is untyped at the boundary. These helpers are the only
// place raw JSON values are interpreted; absent or mistyped values report
// ok=false so callers apply their documented default.

func stringField(raw map[string]any, key string) (string, bool) {
	v, ok := raw[key].(string)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func numberField(raw map[string]any, key string) (float64, bool) {
	return asNumber(raw[key])
}

// asNumber accepts JSON numbers and numeric strings; NaN and infinities
// are rejected.
func asNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		cleaned := strings.NewReplacer(",", "", "₹", "", "%", "").Replace(strings.TrimSpace(n))
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, !math.IsNaN(f) && !math.IsInf(f, 0)
}

// roundClamped rounds n into [lo, hi]. The float is clamped before the
// conversion, which is undefined for values outside the int range.
func roundClamped(n float64, lo, hi int) int {
	return int(math.Round(math.Max(float64(lo), math.Min(float64(hi), n))))
}

func boolField(raw map[string]any, key string) (bool, bool) {
	switch b := raw[key].(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	default:
		return false, false
	}
}

func stringSlice(raw map[string]any, key string) []string {
	items, ok := raw[key].([]any)
	if !ok {
		if single, ok := stringField(raw, key); ok {
			return []string{single}
		}
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func objectSlice(raw map[string]any, key string) []map[string]any {
	items, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func objectField(raw map[string]any, key string) map[string]any {
	m, ok := raw[key].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// decodeRequirementProfile maps a model's "extracted" object onto a
// normalized profile. Unknown keys are ignored.
func decodeRequirementProfile(raw map[string]any) domain.RequirementProfile {
	profile := domain.RequirementProfile{
		Needs:                 lowerAll(stringSlice(raw, "needs")),
		PreexistingConditions: stringSlice(raw, "preexisting_conditions"),
	}
	if v, ok := numberField(raw, "budget_max"); ok {
		profile.BudgetMax = &v
	}
	if v, ok := numberField(raw, "members"); ok {
		members := roundClamped(v, 0, maxMembers)
		profile.Members = &members
	}
	if v, ok := numberField(raw, "sum_insured_min"); ok {
		profile.SumInsuredMin = &v
	}
	if v, ok := stringField(raw, "preferred_type"); ok {
		profile.PreferredType = domain.PolicyType(strings.ToLower(v))
	}
	return profile.Normalize()
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}
