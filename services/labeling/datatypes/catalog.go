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

// DatasetType is a dataset category such as "image" or "timeline".
type DatasetType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Param declares one tunable parameter of a classifier or query strategy.
// Values supplied in a Setup must match Regex and parse as Type.
type Param struct {
	ID    int64     `json:"id"`
	Name  string    `json:"name"`
	Type  ParamType `json:"type"`
	Regex string    `json:"validationRegex"`
}

// Classifier is an outlier-detection model the engine knows by Name.
type Classifier struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Params []Param `json:"params"`
}

// QueryStrategy is an active-learning strategy the engine knows by Name.
type QueryStrategy struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Params []Param `json:"params"`
}
