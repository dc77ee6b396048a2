// SPDX-FileCopyrightText: 2026 renderfleet authors
//
// SPDX-License-Identifier: Apache-2.0

// Package account holds the registry of upstream hosting accounts the
// gateway is allowed to act on. The registry is built once at startup from
// configuration and never changes, so lookups need no locking.
package account

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a reference matches no configured account.
var ErrNotFound = errors.New("account not found")

// Account is one upstream hosting account and the API key used to act on it.
// The key is carried for outbound calls only and never serialized.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	APIKey string `json:"-"`
}

// Registry resolves account references and preserves configuration order so
// aggregated listings come out deterministic.
type Registry struct {
	ordered []Account
	byID    map[string]Account
	byName  map[string]Account // keyed by lowercased name
}

// NewRegistry builds a registry from the configured accounts. Duplicate ids
// and names that collide case-insensitively are rejected; the config layer
// validates the same thing, but the registry is also constructed directly in
// tests and must not hand out ambiguous lookups.
func NewRegistry(accounts []Account) (*Registry, error) {
	r := &Registry{
		ordered: make([]Account, 0, len(accounts)),
		byID:    make(map[string]Account, len(accounts)),
		byName:  make(map[string]Account, len(accounts)),
	}
	for _, a := range accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("account %q has no id", a.Name)
		}
		if a.Name == "" {
			return nil, fmt.Errorf("account %q has no name", a.ID)
		}
		if _, exists := r.byID[a.ID]; exists {
			return nil, fmt.Errorf("duplicate account id %q", a.ID)
		}
		lower := strings.ToLower(a.Name)
		if _, exists := r.byName[lower]; exists {
			return nil, fmt.Errorf("duplicate account name %q", a.Name)
		}
		r.byID[a.ID] = a
		r.byName[lower] = a
		r.ordered = append(r.ordered, a)
	}
	return r, nil
}

// Resolve returns the account matching ref. An exact id match wins; otherwise
// the name is matched case-insensitively. A ref matching one account's id and
// another's name resolves to the id match.
func (r *Registry) Resolve(ref string) (Account, error) {
	if a, ok := r.byID[ref]; ok {
		return a, nil
	}
	if a, ok := r.byName[strings.ToLower(ref)]; ok {
		return a, nil
	}
	return Account{}, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

// Accounts returns the accounts in configuration order. The slice is a copy;
// callers cannot mutate the registry through it.
func (r *Registry) Accounts() []Account {
	out := make([]Account, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len reports the number of configured accounts.
func (r *Registry) Len() int {
	return len(r.ordered)
}
