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

import "testing"

func TestGetGameAccess(t *testing.T) {
	rs := newTestRosterStore(t)
	roster := testRoster("roster-1")
	if err := rs.SaveRoster(roster); err != nil {
		t.Fatal(err)
	}

	game := Game{
		ID:      "game-1",
		OwnerID: "Owner@Example.com",
		TeamID:  "roster-1",
		Permissions: Permissions{
			Users: map[string]string{
				"Reader@example.com": "read",
				"writer@example.com": "write",
				"admin@example.com":  "admin",
			},
		},
	}

	for _, tc := range []struct {
		name   string
		userID string
		want   AccessLevel
	}{
		{"owner is admin", "owner@example.com", AccessAdmin},
		{"owner case insensitive", "OWNER@EXAMPLE.COM", AccessAdmin},
		{"direct read", "reader@example.com", AccessRead},
		{"direct write", "writer@example.com", AccessWrite},
		{"direct admin", "admin@example.com", AccessAdmin},
		{"roster admin inherits", "coach@example.com", AccessAdmin},
		{"roster scorekeeper inherits write", "scorer@example.com", AccessWrite},
		{"stranger", "nobody@example.com", AccessNone},
		{"anonymous", "", AccessNone},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := GetGameAccess(tc.userID, game, rs); got != tc.want {
				t.Errorf("GetGameAccess(%q) = %d, want %d", tc.userID, got, tc.want)
			}
		})
	}
}

func TestGetGameAccess_Public(t *testing.T) {
	rs := newTestRosterStore(t)
	game := Game{ID: "game-1", OwnerID: "owner@example.com"}

	game.Permissions.Public = "read"
	if got := GetGameAccess("", game, rs); got != AccessRead {
		t.Errorf("anonymous public read = %d", got)
	}
	if got := GetGameAccess("stranger@example.com", game, rs); got != AccessRead {
		t.Errorf("stranger public read = %d", got)
	}

	game.Permissions.Public = "write"
	if got := GetGameAccess("stranger@example.com", game, rs); got != AccessWrite {
		t.Errorf("public write = %d", got)
	}

	// Direct permissions win over the public fallback.
	game.Permissions.Users = map[string]string{"stranger@example.com": "read"}
	if got := GetGameAccess("stranger@example.com", game, rs); got != AccessRead {
		t.Errorf("direct read should override public write, got %d", got)
	}
}

func TestGetRosterAccess(t *testing.T) {
	roster := Roster{
		OwnerID: "owner@example.com",
		Roles: RosterRoles{
			Admins:       []string{"Admin@Example.com"},
			Scorekeepers: []string{"scorer@example.com"},
			Spectators:   []string{"fan@example.com"},
		},
	}

	for _, tc := range []struct {
		userID string
		want   AccessLevel
	}{
		{"owner@example.com", AccessAdmin},
		{"admin@example.com", AccessAdmin},
		{"scorer@example.com", AccessWrite},
		{"fan@example.com", AccessRead},
		{"nobody@example.com", AccessNone},
		{"", AccessNone},
	} {
		if got := GetRosterAccess(tc.userID, roster); got != tc.want {
			t.Errorf("GetRosterAccess(%q) = %d, want %d", tc.userID, got, tc.want)
		}
	}
}

func TestMaskEmail(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{"user@example.com", "u***@example.com"},
		{"a@b.co", "a***@b.co"},
		{"", "<empty>"},
		{"not-an-email", "****"},
		{"@example.com", "****"},
	} {
		if got := maskEmail(tc.in); got != tc.want {
			t.Errorf("maskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  User@Example.COM "); got != "user@example.com" {
		t.Errorf("normalizeEmail = %q", got)
	}
}
