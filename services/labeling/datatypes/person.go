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
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Credential is the login secret of an administrator.
type Credential struct {
	Hash []byte
}

// Person is a user or an administrator.
//
// # Description
//
// Both roles share one record. Only administrators carry a Credential;
// users are identified by name alone and own sessions. A deactivated person
// cannot open new sessions.
type Person struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Role        Role        `json:"role"`
	Deactivated bool        `json:"deactivated"`
	Credential  *Credential `json:"-"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// HasCredential reports whether a password is set.
func (p Person) HasCredential() bool {
	return p.Credential != nil && len(p.Credential.Hash) > 0
}

// Validate enforces the role rules.
func (p Person) Validate() error {
	if p.Name == "" {
		return NewError(CodeValidation, "name is required")
	}
	if !p.Role.Valid() {
		return NewError(CodeValidation, "unknown role %q", p.Role)
	}
	if p.Role != RoleAdmin && p.Credential != nil {
		return NewError(CodeValidation, "only admins carry a credential")
	}
	return nil
}

// NewCredential hashes password with bcrypt.
func NewCredential(password string) (*Credential, error) {
	if password == "" {
		return nil, NewError(CodeValidation, "password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return &Credential{Hash: hash}, nil
}

// VerifyPassword checks password against the stored credential. It is
// always false for persons without one.
func (p Person) VerifyPassword(password string) bool {
	if !p.HasCredential() {
		return false
	}
	return bcrypt.CompareHashAndPassword(p.Credential.Hash, []byte(password)) == nil
}

// PersonFilter narrows Person listings.
type PersonFilter struct {
	Role        Role
	Deactivated *bool
}
