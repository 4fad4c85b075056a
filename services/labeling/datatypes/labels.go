// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the domain model of the labeling service: labels,
// setups, sessions, datasets, persons, the catalog of classifiers and query
// strategies, request payloads and the error taxonomy.
package datatypes

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// Label
// =============================================================================

// Label is the outlier label of a single dataset row.
//
// # Description
//
// Label is one tagged value with two string projections. The user projection
// ("U", "Lin", "Lout") is what a person records in a session; the final
// projection ("NOT DEFINED", "inlier", "outlier") is what the inference
// engine predicts. Both projections describe the same three states, so a
// user label and a final label can be compared directly.
//
// # Examples
//
//	LabelOutlier.User()  // "Lout"
//	LabelOutlier.Final() // "outlier"
type Label uint8

const (
	// LabelUndefined is a row nobody has labeled yet.
	LabelUndefined Label = iota

	// LabelInlier marks a row as normal.
	LabelInlier

	// LabelOutlier marks a row as anomalous.
	LabelOutlier
)

const (
	UserTokenUnlabeled = "U"
	UserTokenInlier    = "Lin"
	UserTokenOutlier   = "Lout"

	FinalTokenUndefined = "NOT DEFINED"
	FinalTokenInlier    = "inlier"
	FinalTokenOutlier   = "outlier"
)

// AllLabels lists every label in declaration order.
var AllLabels = []Label{LabelUndefined, LabelInlier, LabelOutlier}

// User returns the token used in session.labels and in engine requests.
func (l Label) User() string {
	switch l {
	case LabelInlier:
		return UserTokenInlier
	case LabelOutlier:
		return UserTokenOutlier
	default:
		return UserTokenUnlabeled
	}
}

// Final returns the token used in session.finalLabels and engine responses.
func (l Label) Final() string {
	switch l {
	case LabelInlier:
		return FinalTokenInlier
	case LabelOutlier:
		return FinalTokenOutlier
	default:
		return FinalTokenUndefined
	}
}

// IsDefined reports whether the label is inlier or outlier.
func (l Label) IsDefined() bool {
	return l == LabelInlier || l == LabelOutlier
}

// ParseUserLabel parses a user token ("U", "Lin", "Lout").
func ParseUserLabel(s string) (Label, error) {
	switch s {
	case UserTokenUnlabeled:
		return LabelUndefined, nil
	case UserTokenInlier:
		return LabelInlier, nil
	case UserTokenOutlier:
		return LabelOutlier, nil
	}
	return LabelUndefined, fmt.Errorf("unknown user label %q", s)
}

// ParseFinalLabel parses a final token ("NOT DEFINED", "inlier", "outlier").
func ParseFinalLabel(s string) (Label, error) {
	switch s {
	case FinalTokenUndefined:
		return LabelUndefined, nil
	case FinalTokenInlier:
		return LabelInlier, nil
	case FinalTokenOutlier:
		return LabelOutlier, nil
	}
	return LabelUndefined, fmt.Errorf("unknown final label %q", s)
}

// =============================================================================
// Projected slices
// =============================================================================

// UserLabels serializes as user tokens.
type UserLabels []Label

// MarshalJSON encodes the labels as user tokens.
func (u UserLabels) MarshalJSON() ([]byte, error) {
	tokens := make([]string, len(u))
	for i, l := range u {
		tokens[i] = l.User()
	}
	return json.Marshal(tokens)
}

// UnmarshalJSON decodes user tokens.
func (u *UserLabels) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	out := make(UserLabels, len(tokens))
	for i, t := range tokens {
		l, err := ParseUserLabel(t)
		if err != nil {
			return fmt.Errorf("labels[%d]: %w", i, err)
		}
		out[i] = l
	}
	*u = out
	return nil
}

// Tokens returns the user projection of every label.
func (u UserLabels) Tokens() []string {
	tokens := make([]string, len(u))
	for i, l := range u {
		tokens[i] = l.User()
	}
	return tokens
}

// FinalLabels serializes as final tokens.
type FinalLabels []Label

// MarshalJSON encodes the labels as final tokens.
func (f FinalLabels) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Tokens())
}

// UnmarshalJSON decodes final tokens.
func (f *FinalLabels) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	parsed, err := ParseFinalTokens(tokens)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Tokens returns the final projection of every label.
func (f FinalLabels) Tokens() []string {
	tokens := make([]string, len(f))
	for i, l := range f {
		tokens[i] = l.Final()
	}
	return tokens
}

// ParseFinalTokens parses a slice of final tokens, failing on the first
// unknown value.
func ParseFinalTokens(tokens []string) (FinalLabels, error) {
	out := make(FinalLabels, len(tokens))
	for i, t := range tokens {
		l, err := ParseFinalLabel(t)
		if err != nil {
			return nil, fmt.Errorf("finalLabels[%d]: %w", i, err)
		}
		out[i] = l
	}
	return out, nil
}

// NewUnlabeled returns n unlabeled slots.
func NewUnlabeled(n int) UserLabels {
	return make(UserLabels, n)
}

// LabelView describes a label with both projections, used by the
// enumeration endpoint.
type LabelView struct {
	User  string `json:"user"`
	Final string `json:"final"`
}

// LabelViews returns a LabelView per label.
func LabelViews() []LabelView {
	out := make([]LabelView, 0, len(AllLabels))
	for _, l := range AllLabels {
		out = append(out, LabelView{User: l.User(), Final: l.Final()})
	}
	return out
}
