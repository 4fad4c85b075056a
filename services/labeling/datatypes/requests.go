// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requestValidate is the validator instance for request payloads.
// Initialized in init() with custom validators.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()

	_ = requestValidate.RegisterValidation("regexp", validateRegexp)
}

// validateRegexp accepts strings that compile as Go regular expressions.
func validateRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// validateStruct runs the tag validation and folds the result into a single
// validation *Error naming every failing field.
func validateStruct(v any) error {
	err := requestValidate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return WrapError(CodeValidation, err, "invalid request")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field()+" failed "+fe.Tag())
	}
	return NewError(CodeValidation, "invalid request: %s", strings.Join(fields, ", "))
}

// =============================================================================
// Catalog
// =============================================================================

type CreateDatasetTypeRequest struct {
	Name string `json:"name" validate:"required,max=128"`
}

func (r *CreateDatasetTypeRequest) Validate() error { return validateStruct(r) }

type CreateParamRequest struct {
	Name  string    `json:"name" validate:"required,max=128"`
	Type  ParamType `json:"type" validate:"required,oneof=int double string"`
	Regex string    `json:"validationRegex" validate:"regexp"`
}

func (r *CreateParamRequest) Validate() error { return validateStruct(r) }

// CreateModelRequest creates a classifier or a query strategy.
type CreateModelRequest struct {
	Name     string  `json:"name" validate:"required,max=128"`
	ParamIDs []int64 `json:"paramIds" validate:"dive,gt=0"`
}

func (r *CreateModelRequest) Validate() error { return validateStruct(r) }

// =============================================================================
// Datasets
// =============================================================================

type CreateDatasetRequest struct {
	Name            string          `json:"name" validate:"required,max=256"`
	Description     string          `json:"description"`
	TypeID          int64           `json:"typeId" validate:"required,gt=0"`
	Data            FeatureMatrix   `json:"dataset"`
	Normalized      FeatureMatrix   `json:"datasetNormalized"`
	NormalizeFactor []MinMax        `json:"normalizeFactor"`
	RawData         json.RawMessage `json:"rawData"`
	GroundTruth     json.RawMessage `json:"groundtruth"`
}

func (r *CreateDatasetRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	return r.Dataset().Validate()
}

// Dataset converts the request into an unsaved Dataset.
func (r *CreateDatasetRequest) Dataset() Dataset {
	return Dataset{
		Name:            r.Name,
		Description:     r.Description,
		TypeID:          r.TypeID,
		Data:            r.Data,
		Normalized:      r.Normalized,
		NormalizeFactor: r.NormalizeFactor,
		RawData:         r.RawData,
		GroundTruth:     r.GroundTruth,
	}
}

// UpdateDatasetRequest changes descriptive fields only; the matrices are
// fixed once sessions may reference them.
type UpdateDatasetRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=256"`
	Description *string `json:"description"`
}

func (r *UpdateDatasetRequest) Validate() error { return validateStruct(r) }

// =============================================================================
// Persons
// =============================================================================

type CreatePersonRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	Role        Role   `json:"role" validate:"required,oneof=admin user"`
	Password    string `json:"password" validate:"required_if=Role admin,excluded_if=Role user"`
	Deactivated bool   `json:"deactivated"`
}

func (r *CreatePersonRequest) Validate() error { return validateStruct(r) }

type UpdatePersonRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=128"`
	Deactivated *bool   `json:"deactivated"`
	Password    *string `json:"password" validate:"omitempty,min=1"`
}

func (r *UpdatePersonRequest) Validate() error { return validateStruct(r) }

// =============================================================================
// Setups
// =============================================================================

// CreateSetupRequest describes a new labeling campaign. Finalize creates the
// setup directly in its final, immutable form.
type CreateSetupRequest struct {
	Name                   string         `json:"name" validate:"required,max=256"`
	Description            string         `json:"description"`
	ClassifierID           int64          `json:"classifierId" validate:"required,gt=0"`
	QueryStrategyID        int64          `json:"queryStrategyId" validate:"required,gt=0"`
	DatasetID              int64          `json:"datasetId" validate:"required,gt=0"`
	CreatorID              int64          `json:"creatorId" validate:"required,gt=0"`
	Params                 map[string]any `json:"params"`
	RawDataVisible         bool           `json:"rawDataVisible"`
	Rewindable             bool           `json:"rewindable"`
	SubspaceDimensionCount int            `json:"subspaceDimensionCount"`
	MaxAnswerTime          int            `json:"maxAnswerTime" validate:"gte=-1"`
	Iterations             int            `json:"iterations" validate:"gte=1"`
	HistoryMode            HistoryMode    `json:"historyMode" validate:"required,oneof=none decisions heatmaps"`
	FeedbackMode           FeedbackMode   `json:"feedbackMode" validate:"required,oneof=system user hybrid"`
	Finalize               bool           `json:"finishedCreation"`
}

func (r *CreateSetupRequest) Validate() error { return validateStruct(r) }

// UpdateSetupRequest is a partial update; nil fields stay unchanged.
type UpdateSetupRequest struct {
	Name                   *string        `json:"name" validate:"omitempty,min=1,max=256"`
	Description            *string        `json:"description"`
	ClassifierID           *int64         `json:"classifierId" validate:"omitempty,gt=0"`
	QueryStrategyID        *int64         `json:"queryStrategyId" validate:"omitempty,gt=0"`
	DatasetID              *int64         `json:"datasetId" validate:"omitempty,gt=0"`
	Params                 map[string]any `json:"params"`
	RawDataVisible         *bool          `json:"rawDataVisible"`
	Rewindable             *bool          `json:"rewindable"`
	SubspaceDimensionCount *int           `json:"subspaceDimensionCount"`
	MaxAnswerTime          *int           `json:"maxAnswerTime" validate:"omitempty,gte=-1"`
	Iterations             *int           `json:"iterations" validate:"omitempty,gte=1"`
	HistoryMode            *HistoryMode   `json:"historyMode" validate:"omitempty,oneof=none decisions heatmaps"`
	FeedbackMode           *FeedbackMode  `json:"feedbackMode" validate:"omitempty,oneof=system user hybrid"`
}

func (r *UpdateSetupRequest) Validate() error { return validateStruct(r) }

// TouchesFrozenFields reports whether the update changes anything other
// than descriptive metadata.
func (r *UpdateSetupRequest) TouchesFrozenFields() bool {
	return r.ClassifierID != nil || r.QueryStrategyID != nil || r.DatasetID != nil ||
		r.Params != nil || r.RawDataVisible != nil || r.Rewindable != nil ||
		r.SubspaceDimensionCount != nil || r.MaxAnswerTime != nil || r.Iterations != nil ||
		r.HistoryMode != nil || r.FeedbackMode != nil
}

// =============================================================================
// Sessions
// =============================================================================

type CreateSessionRequest struct {
	SetupID int64 `json:"setupId" validate:"required,gt=0"`
	UserID  int64 `json:"userId" validate:"required,gt=0"`
}

func (r *CreateSessionRequest) Validate() error { return validateStruct(r) }

// RecordLabelRequest carries a user token. Unknown tokens are rejected by
// the session machine with an invalid-label error, not here.
type RecordLabelRequest struct {
	Label string `json:"label"`
}

// AdvanceRequest closes the current iteration.
type AdvanceRequest struct {
	Selected []int          `json:"selected" validate:"required,min=1"`
	Heatmap  json.RawMessage `json:"heatmap"`
}

func (r *AdvanceRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if len(r.Heatmap) > 0 && !json.Valid(r.Heatmap) {
		return NewError(CodeValidation, "heatmap is not valid JSON")
	}
	return nil
}
