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
	"errors"
	"os"
	"sort"
	"testing"

	"github.com/c2FmZQ/storage"
)

func newTestRosterStore(t *testing.T) *RosterStore {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "rosterstore_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	return NewRosterStore(tmpDir, storage.New(tmpDir, nil))
}

func testRoster(id string) *Roster {
	return &Roster{
		ID:        id,
		Name:      "Wildcats",
		ShortName: "WC",
		OwnerID:   "coach@example.com",
		Players: []Player{
			{ID: "p1", Name: "Alice", Number: "7", Pos: "SS"},
			{ID: "p2", Name: "Bob", Number: "12", Pos: "C"},
		},
		Lineups: []*Lineup{testLineup("p1", "p2")},
		Roles: RosterRoles{
			Admins:       []string{"coach@example.com"},
			Scorekeepers: []string{"scorer@example.com"},
		},
		UpdatedAt: 1000,
	}
}

func TestRosterStore_SaveLoad(t *testing.T) {
	rs := newTestRosterStore(t)
	roster := testRoster("roster-1")

	if err := rs.SaveRoster(roster); err != nil {
		t.Fatalf("SaveRoster failed: %v", err)
	}

	loaded, err := rs.LoadRoster("roster-1")
	if err != nil {
		t.Fatalf("LoadRoster failed: %v", err)
	}
	if loaded.Name != "Wildcats" || loaded.OwnerID != "coach@example.com" {
		t.Errorf("loaded wrong roster: %+v", loaded)
	}
	if len(loaded.Players) != 2 || loaded.Players[1].Pos != "C" {
		t.Errorf("players not preserved: %v", loaded.Players)
	}
	if loaded.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", loaded.SchemaVersion, CurrentSchemaVersion)
	}
	// normalize fills the role slices so JSON consumers never see null.
	if loaded.Roles.Spectators == nil {
		t.Error("Spectators not normalized to empty slice")
	}
}

func TestRosterStore_LoadMissing(t *testing.T) {
	rs := newTestRosterStore(t)
	if _, err := rs.LoadRoster("nope"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestRoster_Lookups(t *testing.T) {
	roster := testRoster("roster-1")

	lu, err := roster.LineupByID(roster.Lineups[0].ID)
	if err != nil {
		t.Fatalf("LineupByID failed: %v", err)
	}
	if lu.Size() != 2 {
		t.Errorf("lineup size = %d, want 2", lu.Size())
	}
	if _, err := roster.LineupByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	p, err := roster.PlayerByID("p2")
	if err != nil {
		t.Fatalf("PlayerByID failed: %v", err)
	}
	if p.Name != "Bob" {
		t.Errorf("player = %+v", p)
	}
	if _, err := roster.PlayerByID("p99"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRosterStore_Listing(t *testing.T) {
	rs := newTestRosterStore(t)

	if ids, err := rs.ListAllRosterIDs(); err != nil || len(ids) != 0 {
		t.Fatalf("empty store: ids=%v err=%v", ids, err)
	}

	for _, id := range []string{"roster-a", "roster-b"} {
		r := testRoster(id)
		r.Name = "Team " + id
		if err := rs.SaveRoster(r); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := rs.ListAllRosterIDs()
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "roster-a" || ids[1] != "roster-b" {
		t.Errorf("ids = %v", ids)
	}

	seen := make(map[string]string)
	for md, err := range rs.ListAllRosterMetadata() {
		if err != nil {
			t.Fatalf("metadata iterator error: %v", err)
		}
		seen[md.ID] = md.Name
	}
	if len(seen) != 2 || seen["roster-a"] != "Team roster-a" {
		t.Errorf("metadata = %v", seen)
	}

	count := 0
	for r, err := range rs.ListAllRosters() {
		if err != nil {
			t.Fatal(err)
		}
		if len(r.Players) != 2 {
			t.Errorf("roster %s players = %v", r.ID, r.Players)
		}
		count++
	}
	if count != 2 {
		t.Errorf("ListAllRosters yielded %d rosters, want 2", count)
	}
}
