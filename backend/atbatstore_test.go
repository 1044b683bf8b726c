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
	"os"
	"testing"

	"github.com/c2FmZQ/storage"
)

func newTestAtBatStore(t *testing.T) *AtBatStore {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "atbatstore_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	return NewAtBatStore(tmpDir, storage.New(tmpDir, nil))
}

func TestAtBatStore_Append(t *testing.T) {
	as := newTestAtBatStore(t)
	gameId := "11111111-1111-4111-8111-111111111111"

	a1 := &AtBat{ID: "ab-1", GameID: gameId, BatterID: "p1", Result: ResultSingle}
	a2 := &AtBat{ID: "ab-2", GameID: gameId, BatterID: "p2", Result: ResultWalk}

	if err := as.Append(a1); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := as.Append(a2); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if a1.Seq != 1 || a2.Seq != 2 {
		t.Errorf("Seq = %d/%d, want 1/2", a1.Seq, a2.Seq)
	}

	atBats, err := as.ListByGame(gameId)
	if err != nil {
		t.Fatalf("ListByGame failed: %v", err)
	}
	if len(atBats) != 2 || atBats[0].ID != "ab-1" || atBats[1].ID != "ab-2" {
		t.Errorf("log order wrong: %v", atBats)
	}

	if n, err := as.Count(gameId); err != nil || n != 2 {
		t.Errorf("Count = %d/%v, want 2", n, err)
	}
}

func TestAtBatStore_AppendIdempotent(t *testing.T) {
	as := newTestAtBatStore(t)
	gameId := "11111111-1111-4111-8111-111111111111"

	a := &AtBat{ID: "ab-1", GameID: gameId, BatterID: "p1", Result: ResultSingle}
	if err := as.Append(a); err != nil {
		t.Fatal(err)
	}

	// Replaying the same id is a no-op that restores the original Seq.
	replay := &AtBat{ID: "ab-1", GameID: gameId, BatterID: "p1", Result: ResultSingle, Seq: 99}
	if err := as.Append(replay); err != nil {
		t.Fatalf("replay Append failed: %v", err)
	}
	if replay.Seq != 1 {
		t.Errorf("replay Seq = %d, want 1", replay.Seq)
	}
	if n, _ := as.Count(gameId); n != 1 {
		t.Errorf("Count = %d after replay, want 1", n)
	}
}

func TestAtBatStore_EmptyGame(t *testing.T) {
	as := newTestAtBatStore(t)
	gameId := "22222222-2222-4222-8222-222222222222"

	atBats, err := as.ListByGame(gameId)
	if err != nil {
		t.Fatalf("ListByGame failed: %v", err)
	}
	if atBats == nil || len(atBats) != 0 {
		t.Errorf("expected empty slice, got %v", atBats)
	}

	data, err := as.ListByGameAsJSON(gameId)
	if err != nil {
		t.Fatalf("ListByGameAsJSON failed: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("JSON = %s, want []", data)
	}
}

func TestAtBatStore_RestoreLog(t *testing.T) {
	as := newTestAtBatStore(t)
	gameId := "11111111-1111-4111-8111-111111111111"

	as.Append(&AtBat{ID: "old", GameID: gameId})

	restored := &atBatLog{
		GameID:        gameId,
		SchemaVersion: CurrentSchemaVersion,
		AtBats: []*AtBat{
			{ID: "snap-1", GameID: gameId, Seq: 1},
			{ID: "snap-2", GameID: gameId, Seq: 2},
		},
	}
	if err := as.RestoreLog(restored); err != nil {
		t.Fatalf("RestoreLog failed: %v", err)
	}

	atBats, err := as.ListByGame(gameId)
	if err != nil {
		t.Fatal(err)
	}
	if len(atBats) != 2 || atBats[0].ID != "snap-1" {
		t.Errorf("restored log = %v", atBats)
	}
}
