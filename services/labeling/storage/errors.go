// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"errors"
	"fmt"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
)

// Translate converts a storage error into the API error taxonomy. Errors
// that already carry a taxonomy code pass through unchanged; anything
// unrecognized becomes an internal error that keeps the cause.
//
// # Examples
//
//	_, err := store.GetSetup(ctx, 7)
//	return storage.Translate(err, "setup %d", 7) // not_found: setup 7 not found
func Translate(err error, subject string, args ...any) error {
	if err == nil {
		return nil
	}
	var apiErr *datatypes.Error
	if errors.As(err, &apiErr) {
		return err
	}
	what := fmt.Sprintf(subject, args...)
	switch {
	case errors.Is(err, ErrNotFound):
		return datatypes.WrapError(datatypes.CodeNotFound, err, "%s not found", what)
	case errors.Is(err, ErrAlreadyExists):
		return datatypes.WrapError(datatypes.CodeValidation, err, "%s already exists", what)
	case errors.Is(err, ErrInUse):
		return datatypes.WrapError(datatypes.CodeState, err, "%s is still referenced", what)
	default:
		return datatypes.WrapError(datatypes.CodeInternal, err, "%s: storage failure", what)
	}
}
