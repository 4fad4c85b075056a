// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/storage"
	"github.com/gin-gonic/gin"
)

// CreatePerson registers a user or an administrator. Administrators must
// supply a password, which is stored as a bcrypt hash and never returned.
func CreatePerson(store storage.PersonStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreatePersonRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		p := datatypes.Person{Name: req.Name, Role: req.Role, Deactivated: req.Deactivated}
		if req.Role == datatypes.RoleAdmin {
			cred, err := datatypes.NewCredential(req.Password)
			if err != nil {
				respondError(c, err)
				return
			}
			p.Credential = cred
		}
		if err := p.Validate(); err != nil {
			respondError(c, err)
			return
		}
		created, err := store.CreatePerson(c.Request.Context(), p)
		if err != nil {
			respondError(c, storage.Translate(err, "person %q", req.Name))
			return
		}
		slog.Info("person created", "id", created.ID, "name", created.Name, "role", string(created.Role))
		c.JSON(http.StatusCreated, created)
	}
}

// ListPersons supports ?role=admin|user and ?deactivated=true|false.
func ListPersons(store storage.PersonStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := datatypes.PersonFilter{Role: datatypes.Role(c.Query("role"))}
		if filter.Role != "" && !filter.Role.Valid() {
			respondError(c, datatypes.NewError(datatypes.CodeValidation, "unknown role %q", filter.Role))
			return
		}
		deactivated, ok := queryBool(c, "deactivated")
		if !ok {
			return
		}
		filter.Deactivated = deactivated
		out, err := store.ListPersons(c.Request.Context(), filter)
		if err != nil {
			respondError(c, storage.Translate(err, "persons"))
			return
		}
		c.JSON(http.StatusOK, out)
	}
}

func GetPerson(store storage.PersonStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		p, err := store.GetPerson(c.Request.Context(), id)
		if err != nil {
			respondError(c, storage.Translate(err, "person %d", id))
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// UpdatePerson renames, (de)activates or changes the password of a person.
// Only administrators have a password.
func UpdatePerson(store storage.PersonStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var req datatypes.UpdatePersonRequest
		if !bindJSON(c, &req) {
			return
		}
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()
		p, err := store.GetPerson(ctx, id)
		if err != nil {
			respondError(c, storage.Translate(err, "person %d", id))
			return
		}
		if req.Name != nil {
			p.Name = *req.Name
		}
		if req.Deactivated != nil {
			p.Deactivated = *req.Deactivated
		}
		if req.Password != nil {
			if p.Role != datatypes.RoleAdmin {
				respondError(c, datatypes.NewError(datatypes.CodeValidation, "only admins have a password"))
				return
			}
			if p.Credential, err = datatypes.NewCredential(*req.Password); err != nil {
				respondError(c, err)
				return
			}
		}
		if err := store.UpdatePerson(ctx, p); err != nil {
			respondError(c, storage.Translate(err, "person %d", id))
			return
		}
		slog.Info("person updated", "id", id, "deactivated", p.Deactivated)
		c.JSON(http.StatusOK, p)
	}
}

// DeletePerson removes a person with their sessions. Creators of setups are
// refused with a state error.
func DeletePerson(store storage.PersonStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := store.DeletePerson(c.Request.Context(), id); err != nil {
			respondError(c, storage.Translate(err, "person %d", id))
			return
		}
		slog.Info("person deleted", "id", id)
		c.Status(http.StatusNoContent)
	}
}
