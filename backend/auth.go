// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import (
	"net/http"
	"strings"
)

type contextKey struct{}

// userIDKey is the context key for the authenticated user's ID (email).
// The associated value is always a string.
var userIDKey contextKey

// getUserID returns the UserID from the request context, if present.
func getUserID(r *http.Request) string {
	if val := r.Context().Value(userIDKey); val != nil {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// normalizeEmail ensures consistent casing and whitespace for User IDs.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail obscures an email address for safe logging.
// e.g. "user@example.com" -> "u***@example.com"
func maskEmail(email string) string {
	if email == "" {
		return "<empty>"
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || len(parts[0]) < 1 {
		return "****"
	}
	return string(parts[0][0]) + "***@" + parts[1]
}

type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessWrite
	AccessAdmin
)

// GetGameAccess calculates the effective access level for a user on a
// game, loading the linked roster for role inheritance. This is the
// authoritative check; the Registry keeps an indexed approximation of
// the same rules.
func GetGameAccess(userID string, game Game, rStore *RosterStore) AccessLevel {
	userID = normalizeEmail(userID)
	ownerID := normalizeEmail(game.OwnerID)

	if userID != "" && ownerID == userID {
		return AccessAdmin
	}

	// Direct permissions.
	if userID != "" && game.Permissions.Users != nil {
		for u, role := range game.Permissions.Users {
			if normalizeEmail(u) == userID {
				switch role {
				case "admin":
					return AccessAdmin
				case "write":
					return AccessWrite
				case "read":
					return AccessRead
				}
			}
		}
	}

	// Roster role inheritance.
	level := AccessNone
	if userID != "" && game.TeamID != "" {
		if ro, err := rStore.LoadRoster(game.TeamID); err == nil {
			level = GetRosterAccess(userID, *ro)
		}
	}
	if level > AccessNone {
		return level
	}

	switch game.Permissions.Public {
	case "write":
		return AccessWrite
	case "read":
		return AccessRead
	}

	return AccessNone
}

// GetRosterAccess calculates the effective access level for a user on a roster.
func GetRosterAccess(userID string, roster Roster) AccessLevel {
	userID = normalizeEmail(userID)
	if userID == "" {
		return AccessNone
	}
	if normalizeEmail(roster.OwnerID) == userID {
		return AccessAdmin
	}

	for _, u := range roster.Roles.Admins {
		if normalizeEmail(u) == userID {
			return AccessAdmin
		}
	}
	for _, u := range roster.Roles.Scorekeepers {
		if normalizeEmail(u) == userID {
			return AccessWrite
		}
	}
	for _, u := range roster.Roles.Spectators {
		if normalizeEmail(u) == userID {
			return AccessRead
		}
	}

	return AccessNone
}
