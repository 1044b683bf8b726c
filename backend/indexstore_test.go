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
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/c2FmZQ/storage"
)

func newTestIndexStore(t *testing.T) (*IndexStore, string) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "indexstore_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	return NewIndexStore(tmpDir, storage.New(tmpDir, nil), nil), tmpDir
}

func TestIndexStore_BlankRecords(t *testing.T) {
	is, _ := newTestIndexStore(t)

	idx, err := is.GetUserIndex("nobody@example.com")
	if err != nil {
		t.Fatalf("GetUserIndex failed: %v", err)
	}
	if idx.UserID != "nobody@example.com" {
		t.Errorf("UserID = %q", idx.UserID)
	}
	if idx.GameAccess == nil || idx.RosterAccess == nil {
		t.Error("blank record maps not initialized")
	}

	rg, err := is.GetRosterGames("roster-1")
	if err != nil {
		t.Fatal(err)
	}
	if rg.RosterID != "roster-1" || rg.GameIDs == nil {
		t.Errorf("blank RosterGamesIndex = %+v", rg)
	}
}

func TestIndexStore_SetGetFlush(t *testing.T) {
	is, tmpDir := newTestIndexStore(t)

	idx := &UserIndex{
		UserID: "scorer@example.com",
		GameAccess: map[string]AccessLevel{
			"game-1": AccessWrite,
		},
		RosterAccess: make(map[string]AccessLevel),
		LastUpdated:  100,
	}
	is.SetUserIndex(idx)

	// Cached reads see the record before any flush.
	got, err := is.GetUserIndex("scorer@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.GameAccess["game-1"] != AccessWrite {
		t.Errorf("GameAccess = %v", got.GameAccess)
	}

	// The record lives under a hashed filename, never the raw email.
	h := sha256.Sum256([]byte("scorer@example.com"))
	hashed := filepath.Join(tmpDir, "users", hex.EncodeToString(h[:])+".json")
	if _, err := os.Stat(hashed); !os.IsNotExist(err) {
		t.Errorf("record persisted before FlushAll: %v", err)
	}

	if err := is.FlushAll(); err != nil {
		t.Fatalf("FlushAll failed: %v", err)
	}
	if _, err := os.Stat(hashed); err != nil {
		t.Errorf("hashed index file missing after flush: %v", err)
	}

	// Invalidate drops the cached copy; the next Get reloads from disk.
	is.InvalidateUser("scorer@example.com")
	reloaded, err := is.GetUserIndex("scorer@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.LastUpdated != 100 || reloaded.GameAccess["game-1"] != AccessWrite {
		t.Errorf("reloaded = %+v", reloaded)
	}
}

func TestIndexStore_MembershipTables(t *testing.T) {
	is, _ := newTestIndexStore(t)

	is.SetRosterGames(&RosterGamesIndex{
		RosterID: "roster-1",
		GameIDs:  map[string]bool{"game-1": true, "game-2": true},
	})
	is.SetGameUsers(&GameUsersIndex{
		GameID:  "game-1",
		UserIDs: map[string]bool{"a@example.com": true},
	})
	is.SetRosterUsers(&RosterUsersIndex{
		RosterID: "roster-1",
		UserIDs:  map[string]bool{"coach@example.com": true},
	})
	if err := is.FlushAll(); err != nil {
		t.Fatal(err)
	}

	is.InvalidateRosterGames("roster-1")
	is.InvalidateGameUsers("game-1")
	is.InvalidateRosterUsers("roster-1")

	rg, err := is.GetRosterGames("roster-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rg.GameIDs) != 2 || !rg.GameIDs["game-2"] {
		t.Errorf("RosterGames = %v", rg.GameIDs)
	}
	gu, err := is.GetGameUsers("game-1")
	if err != nil {
		t.Fatal(err)
	}
	if !gu.UserIDs["a@example.com"] {
		t.Errorf("GameUsers = %v", gu.UserIDs)
	}
	ru, err := is.GetRosterUsers("roster-1")
	if err != nil {
		t.Fatal(err)
	}
	if !ru.UserIDs["coach@example.com"] {
		t.Errorf("RosterUsers = %v", ru.UserIDs)
	}
}
