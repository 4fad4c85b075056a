// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package setups

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
)

// DeclaredParams merges the parameter lists of a classifier and a query
// strategy, keyed by name.
func DeclaredParams(c datatypes.Classifier, q datatypes.QueryStrategy) map[string]datatypes.Param {
	out := make(map[string]datatypes.Param, len(c.Params)+len(q.Params))
	for _, p := range c.Params {
		out[p.Name] = p
	}
	for _, p := range q.Params {
		out[p.Name] = p
	}
	return out
}

// ValidateParams checks every supplied value against its declaration and
// returns the values in their canonical form.
//
// # Description
//
// A value must name a declared parameter, have the declared type, and its
// string form must match the declaration's regex (when one is set). Numbers
// are rendered in their shortest decimal form before matching, so 1.0
// matches as "1". Declared parameters may be omitted; the engine applies its
// own defaults.
//
// Numeric strings are accepted for int and double parameters but come back
// as numbers (int64 and float64), so the engine never sees "0.5" where it
// expects 0.5.
//
// Keys are checked in sorted order so the reported error is deterministic.
//
// # Outputs
//
//   - map[string]any: A new map with canonical values. Never nil.
//   - error: validation *datatypes.Error for the first offending key.
func ValidateParams(values map[string]any, declared map[string]datatypes.Param) (map[string]any, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(values))
	for _, name := range keys {
		decl, ok := declared[name]
		if !ok {
			return nil, datatypes.NewError(datatypes.CodeValidation,
				"parameter %q is not declared by the classifier or query strategy", name)
		}
		value, text, err := checkType(name, decl.Type, values[name])
		if err != nil {
			return nil, err
		}
		out[name] = value
		if decl.Regex == "" {
			continue
		}
		re, err := regexp.Compile(decl.Regex)
		if err != nil {
			return nil, datatypes.WrapError(datatypes.CodeValidation, err,
				"parameter %q has an invalid validation regex", name)
		}
		if !re.MatchString(text) {
			return nil, datatypes.NewError(datatypes.CodeValidation,
				"parameter %q value %q does not match %s", name, text, decl.Regex)
		}
	}
	return out, nil
}

// checkType verifies v against t and returns its canonical value and
// string form.
func checkType(name string, t datatypes.ParamType, v any) (any, string, error) {
	switch t {
	case datatypes.ParamString:
		s, ok := v.(string)
		if !ok {
			return nil, "", datatypes.NewError(datatypes.CodeValidation, "parameter %q must be a string", name)
		}
		return s, s, nil

	case datatypes.ParamInt:
		f, text, ok := asNumber(v)
		if !ok || f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
			return nil, "", datatypes.NewError(datatypes.CodeValidation, "parameter %q must be an integer", name)
		}
		return int64(f), text, nil

	case datatypes.ParamDouble:
		f, text, ok := asNumber(v)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, "", datatypes.NewError(datatypes.CodeValidation, "parameter %q must be a number", name)
		}
		return f, text, nil
	}
	return nil, "", datatypes.NewError(datatypes.CodeValidation, "parameter %q has unknown type %q", name, t)
}

// asNumber accepts JSON numbers and numeric strings.
func asNumber(v any) (float64, string, bool) {
	switch n := v.(type) {
	case float64:
		return n, strconv.FormatFloat(n, 'f', -1, 64), true
	case float32:
		return float64(n), strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case int:
		return float64(n), strconv.Itoa(n), true
	case int64:
		return float64(n), strconv.FormatInt(n, 10), true
	case json.Number:
		f, err := n.Float64()
		return f, n.String(), err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, n, err == nil
	}
	return 0, "", false
}
