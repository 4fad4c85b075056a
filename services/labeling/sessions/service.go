// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sessions

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/observability"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var sessionsTracer = otel.Tracer("ifeed.labeling.sessions")

// Repository is the persistence the session service needs.
type Repository interface {
	storage.SessionStore
	GetSetup(ctx context.Context, id int64) (datatypes.Setup, error)
	GetDataset(ctx context.Context, id int64) (datatypes.Dataset, error)
	GetPerson(ctx context.Context, id int64) (datatypes.Person, error)
}

// Export is the label download of a session.
type Export struct {
	FileName    string                `json:"-"`
	FinalLabels datatypes.FinalLabels `json:"finalLabels"`
}

// Service runs session transitions against the store.
//
// # Description
//
// Every mutating operation loads the setup rules, then hands a pure
// transition to Repository.MutateSession, which serializes concurrent
// writers of one session. Failed transitions write nothing.
//
// # Thread Safety
//
// Safe for concurrent use.
type Service struct {
	repo    Repository
	clock   Clock
	metrics *observability.Metrics
}

// NewService creates a session service. A nil clock means SystemClock;
// metrics may be nil.
func NewService(repo Repository, clock Clock, metrics *observability.Metrics) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{repo: repo, clock: clock, metrics: metrics}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Create opens a session for a user on a finalized setup.
//
// # Description
//
// Fails with not_ready when the setup is still a draft, forbidden when the
// user is deactivated, validation when the person is not a user or already
// has a session on this setup, and not_found for unknown ids.
//
// # Outputs
//
//   - datatypes.Session: The new session with its name resolved.
//   - error: *datatypes.Error.
func (s *Service) Create(ctx context.Context, req datatypes.CreateSessionRequest) (datatypes.Session, error) {
	ctx, span := sessionsTracer.Start(ctx, "sessions.Create")
	defer span.End()

	created, err := s.create(ctx, req)
	s.metrics.RecordTransition(observability.OpCreate, err)
	if err != nil {
		recordSpanError(span, err)
		return datatypes.Session{}, err
	}
	span.SetAttributes(attribute.Int64("session.id", created.ID))
	slog.Info("session created",
		"session_id", created.ID,
		"setup_id", created.SetupID,
		"user_id", created.UserID,
		"rows", len(created.Labels))
	return created, nil
}

func (s *Service) create(ctx context.Context, req datatypes.CreateSessionRequest) (datatypes.Session, error) {
	if err := req.Validate(); err != nil {
		return datatypes.Session{}, err
	}
	setup, err := s.repo.GetSetup(ctx, req.SetupID)
	if err != nil {
		return datatypes.Session{}, storage.Translate(err, "setup %d", req.SetupID)
	}
	if !setup.FinishedCreation {
		return datatypes.Session{}, datatypes.NewError(datatypes.CodeNotReady,
			"setup %d is not finalized", setup.ID)
	}
	user, err := s.repo.GetPerson(ctx, req.UserID)
	if err != nil {
		return datatypes.Session{}, storage.Translate(err, "user %d", req.UserID)
	}
	if user.Deactivated {
		return datatypes.Session{}, datatypes.NewError(datatypes.CodeForbidden, "user %d is deactivated", user.ID)
	}
	if user.Role != datatypes.RoleUser {
		return datatypes.Session{}, datatypes.NewError(datatypes.CodeValidation,
			"person %d is not a user", user.ID)
	}
	dataset, err := s.repo.GetDataset(ctx, setup.DatasetID)
	if err != nil {
		return datatypes.Session{}, storage.Translate(err, "dataset %d", setup.DatasetID)
	}

	created, err := s.repo.CreateSession(ctx, NewSession(setup.ID, user.ID, dataset.RowCount(), s.clock.Now()))
	if err != nil {
		return datatypes.Session{}, storage.Translate(err, "session for user %d on setup %d", user.ID, setup.ID)
	}
	created.Name = datatypes.SessionName(user.Name, setup.Name, created.ID)
	return created, nil
}

// Get returns one session with its name resolved.
func (s *Service) Get(ctx context.Context, id int64) (datatypes.Session, error) {
	se, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return datatypes.Session{}, storage.Translate(err, "session %d", id)
	}
	return s.named(ctx, se)
}

// List returns the sessions matching filter with names resolved.
func (s *Service) List(ctx context.Context, filter datatypes.SessionFilter) ([]datatypes.Session, error) {
	list, err := s.repo.ListSessions(ctx, filter)
	if err != nil {
		return nil, storage.Translate(err, "sessions")
	}
	r := newNameResolver(s.repo)
	for i := range list {
		if list[i].Name, err = r.name(ctx, list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Delete removes a session.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return storage.Translate(err, "session %d", id)
	}
	slog.Info("session deleted", "session_id", id)
	return nil
}

// =============================================================================
// Transitions
// =============================================================================

// RecordLabel sets the user label of one row.
func (s *Service) RecordLabel(ctx context.Context, id int64, row int, token string) (datatypes.Session, error) {
	return s.mutate(ctx, id, observability.OpLabel, func(se *datatypes.Session, _ Rules) error {
		return RecordLabel(se, row, token)
	})
}

// Advance closes the current iteration with the rows the user selected and
// an optional heatmap snapshot.
func (s *Service) Advance(ctx context.Context, id int64, req datatypes.AdvanceRequest) (datatypes.Session, error) {
	if err := req.Validate(); err != nil {
		s.metrics.RecordTransition(observability.OpAdvance, err)
		return datatypes.Session{}, err
	}
	now := s.clock.Now()
	return s.mutate(ctx, id, observability.OpAdvance, func(se *datatypes.Session, r Rules) error {
		return Advance(se, r, req.Selected, req.Heatmap, now)
	})
}

// Rewind undoes the last iteration.
func (s *Service) Rewind(ctx context.Context, id int64) (datatypes.Session, error) {
	return s.mutate(ctx, id, observability.OpRewind, func(se *datatypes.Session, r Rules) error {
		return Rewind(se, r)
	})
}

// Pause stops the session timer.
func (s *Service) Pause(ctx context.Context, id int64) (datatypes.Session, error) {
	now := s.clock.Now()
	return s.mutate(ctx, id, observability.OpPause, func(se *datatypes.Session, _ Rules) error {
		return Pause(se, now)
	})
}

// Resume restarts the session timer.
func (s *Service) Resume(ctx context.Context, id int64) (datatypes.Session, error) {
	now := s.clock.Now()
	return s.mutate(ctx, id, observability.OpResume, func(se *datatypes.Session, _ Rules) error {
		return Resume(se, now)
	})
}

// Close finishes a session early.
func (s *Service) Close(ctx context.Context, id int64) (datatypes.Session, error) {
	now := s.clock.Now()
	return s.mutate(ctx, id, observability.OpClose, func(se *datatypes.Session, _ Rules) error {
		return Close(se, now)
	})
}

// transition is a Rules-aware session mutation.
type transition func(se *datatypes.Session, r Rules) error

// mutate loads the setup rules of session id and applies fn atomically.
func (s *Service) mutate(ctx context.Context, id int64, op observability.Operation, fn transition) (datatypes.Session, error) {
	ctx, span := sessionsTracer.Start(ctx, "sessions."+string(op),
		trace.WithAttributes(attribute.Int64("session.id", id)))
	defer span.End()

	out, err := s.apply(ctx, id, fn)
	s.metrics.RecordTransition(op, err)
	if err != nil {
		recordSpanError(span, err)
		slog.Debug("session transition rejected",
			"session_id", id,
			"operation", string(op),
			"code", string(datatypes.CodeOf(err)))
		return datatypes.Session{}, err
	}

	span.SetAttributes(attribute.Int("session.iteration", out.Iteration), attribute.Bool("session.finished", out.Finished))
	slog.Info("session updated",
		"session_id", id,
		"operation", string(op),
		"iteration", out.Iteration,
		"finished", out.Finished)
	return s.named(ctx, out)
}

func (s *Service) apply(ctx context.Context, id int64, fn transition) (datatypes.Session, error) {
	current, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return datatypes.Session{}, storage.Translate(err, "session %d", id)
	}
	setup, err := s.repo.GetSetup(ctx, current.SetupID)
	if err != nil {
		return datatypes.Session{}, storage.Translate(err, "setup %d", current.SetupID)
	}
	rules := RulesFor(setup)

	out, err := s.repo.MutateSession(ctx, id, func(se *datatypes.Session) error {
		return fn(se, rules)
	})
	if err != nil {
		return datatypes.Session{}, storage.Translate(err, "session %d", id)
	}
	return out, nil
}

// =============================================================================
// Statistics
// =============================================================================

// Progress reports how far a session has come.
func (s *Service) Progress(ctx context.Context, id int64) (datatypes.Progress, error) {
	se, err := s.Get(ctx, id)
	if err != nil {
		return datatypes.Progress{}, err
	}
	setup, err := s.repo.GetSetup(ctx, se.SetupID)
	if err != nil {
		return datatypes.Progress{}, storage.Translate(err, "setup %d", se.SetupID)
	}
	return ProgressOf(se, setup), nil
}

// Compare computes agreement between the final labels of two sessions of
// the same setup.
func (s *Service) Compare(ctx context.Context, a, b int64) (datatypes.Comparison, error) {
	first, err := s.repo.GetSession(ctx, a)
	if err != nil {
		return datatypes.Comparison{}, storage.Translate(err, "session %d", a)
	}
	second, err := s.repo.GetSession(ctx, b)
	if err != nil {
		return datatypes.Comparison{}, storage.Translate(err, "session %d", b)
	}
	if first.SetupID != second.SetupID {
		return datatypes.Comparison{}, datatypes.NewError(datatypes.CodeValidation,
			"sessions %d and %d belong to different setups", a, b)
	}
	c, err := CompareLabels(first.FinalLabels, second.FinalLabels)
	if err != nil {
		return datatypes.Comparison{}, err
	}
	c.SessionA, c.SessionB = a, b
	return c, nil
}

// Export returns the final labels of a session as a named download.
func (s *Service) Export(ctx context.Context, id int64) (Export, error) {
	se, err := s.Get(ctx, id)
	if err != nil {
		return Export{}, err
	}
	labels := se.FinalLabels
	if labels == nil {
		labels = datatypes.FinalLabels{}
	}
	return Export{FileName: ExportFileName(se.Name), FinalLabels: labels}, nil
}

// =============================================================================
// Names
// =============================================================================

func (s *Service) named(ctx context.Context, se datatypes.Session) (datatypes.Session, error) {
	name, err := newNameResolver(s.repo).name(ctx, se)
	if err != nil {
		return datatypes.Session{}, err
	}
	se.Name = name
	return se, nil
}

// nameResolver caches user and setup names for one listing.
type nameResolver struct {
	repo   Repository
	users  map[int64]string
	setups map[int64]string
}

func newNameResolver(repo Repository) *nameResolver {
	return &nameResolver{repo: repo, users: map[int64]string{}, setups: map[int64]string{}}
}

func (r *nameResolver) name(ctx context.Context, se datatypes.Session) (string, error) {
	user, ok := r.users[se.UserID]
	if !ok {
		p, err := r.repo.GetPerson(ctx, se.UserID)
		if err != nil {
			return "", storage.Translate(err, "user %d", se.UserID)
		}
		user = p.Name
		r.users[se.UserID] = user
	}
	setup, ok := r.setups[se.SetupID]
	if !ok {
		su, err := r.repo.GetSetup(ctx, se.SetupID)
		if err != nil {
			return "", storage.Translate(err, "setup %d", se.SetupID)
		}
		setup = su.Name
		r.setups[se.SetupID] = setup
	}
	return datatypes.SessionName(user, setup, se.ID), nil
}

func recordSpanError(span trace.Span, err error) {
	var apiErr *datatypes.Error
	if errors.As(err, &apiErr) && apiErr.Code != datatypes.CodeInternal {
		span.SetAttributes(attribute.String("error.code", string(apiErr.Code)))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
