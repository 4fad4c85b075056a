// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage defines the persistence contracts of the labeling service.
//
// Implementations return ErrNotFound, ErrAlreadyExists and ErrInUse (possibly
// wrapped) so the service layer can translate them into API errors without
// knowing the backend.
package storage

import (
	"context"
	"errors"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInUse indicates a record cannot be removed while others reference it.
	ErrInUse = errors.New("record is referenced by other records")
)

// CatalogStore persists dataset types, parameters, classifiers and query
// strategies.
type CatalogStore interface {
	CreateDatasetType(ctx context.Context, name string) (datatypes.DatasetType, error)
	GetDatasetType(ctx context.Context, id int64) (datatypes.DatasetType, error)
	ListDatasetTypes(ctx context.Context) ([]datatypes.DatasetType, error)

	CreateParam(ctx context.Context, p datatypes.Param) (datatypes.Param, error)
	ListParams(ctx context.Context) ([]datatypes.Param, error)

	CreateClassifier(ctx context.Context, name string, paramIDs []int64) (datatypes.Classifier, error)
	GetClassifier(ctx context.Context, id int64) (datatypes.Classifier, error)
	ListClassifiers(ctx context.Context) ([]datatypes.Classifier, error)

	CreateQueryStrategy(ctx context.Context, name string, paramIDs []int64) (datatypes.QueryStrategy, error)
	GetQueryStrategy(ctx context.Context, id int64) (datatypes.QueryStrategy, error)
	ListQueryStrategies(ctx context.Context) ([]datatypes.QueryStrategy, error)
}

// DatasetStore persists datasets.
type DatasetStore interface {
	CreateDataset(ctx context.Context, d datatypes.Dataset) (datatypes.Dataset, error)
	GetDataset(ctx context.Context, id int64) (datatypes.Dataset, error)
	ListDatasets(ctx context.Context) ([]datatypes.Dataset, error)
	UpdateDataset(ctx context.Context, d datatypes.Dataset) error
	DeleteDataset(ctx context.Context, id int64) error
}

// PersonStore persists users and administrators.
type PersonStore interface {
	CreatePerson(ctx context.Context, p datatypes.Person) (datatypes.Person, error)
	GetPerson(ctx context.Context, id int64) (datatypes.Person, error)
	GetPersonByName(ctx context.Context, name string) (datatypes.Person, error)
	ListPersons(ctx context.Context, filter datatypes.PersonFilter) ([]datatypes.Person, error)
	UpdatePerson(ctx context.Context, p datatypes.Person) error
	DeletePerson(ctx context.Context, id int64) error
}

// SetupStore persists setups.
type SetupStore interface {
	CreateSetup(ctx context.Context, s datatypes.Setup) (datatypes.Setup, error)
	GetSetup(ctx context.Context, id int64) (datatypes.Setup, error)
	ListSetups(ctx context.Context, filter datatypes.SetupFilter) ([]datatypes.Setup, error)
	UpdateSetup(ctx context.Context, s datatypes.Setup) error
	DeleteSetup(ctx context.Context, id int64) error
}

// MutateFunc changes a session in place. Returning an error aborts the
// mutation and nothing is written.
type MutateFunc func(s *datatypes.Session) error

// SessionStore persists sessions.
//
// MutateSession is the only read-modify-write path: the implementation
// loads the session, calls fn and writes the result back as one serialized
// unit, so concurrent mutations of one session never interleave.
type SessionStore interface {
	CreateSession(ctx context.Context, s datatypes.Session) (datatypes.Session, error)
	GetSession(ctx context.Context, id int64) (datatypes.Session, error)
	ListSessions(ctx context.Context, filter datatypes.SessionFilter) ([]datatypes.Session, error)
	MutateSession(ctx context.Context, id int64, fn MutateFunc) (datatypes.Session, error)
	SetFinalLabels(ctx context.Context, id int64, labels datatypes.FinalLabels) (datatypes.Session, error)
	DeleteSession(ctx context.Context, id int64) error
}

// Table is a handle on one persisted collection. Reset wipes exactly the
// handles it is given, in order.
type Table interface {
	TableName() string
}

// Resetter wipes collections.
type Resetter interface {
	Reset(ctx context.Context, tables []Table) error
}

// Store is the full persistence surface.
type Store interface {
	CatalogStore
	DatasetStore
	PersonStore
	SetupStore
	SessionStore
	Resetter
	Close() error
}
