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
	"sync"
	"testing"

	"github.com/c2FmZQ/storage"
)

const testGameID = "11111111-1111-4111-8111-111111111111"

func newTestProcessor(t *testing.T) (*AtBatProcessor, *GameStore, *AtBatStore) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "atbat_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	st := storage.New(tmpDir, nil)
	gs := NewGameStore(tmpDir, st)
	as := NewAtBatStore(tmpDir, st)
	return NewAtBatProcessor(gs, as), gs, as
}

func startedGame(t *testing.T, gs *GameStore) *Game {
	t.Helper()
	g := &Game{ID: testGameID, Status: StatusSetup, OwnerID: "owner@example.com"}
	started, err := g.Start(testLineup("p1", "p2", "p3"))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	saved, err := gs.SaveGameCAS(started, 0)
	if err != nil {
		t.Fatalf("SaveGameCAS failed: %v", err)
	}
	return saved
}

func TestRecordAtBat(t *testing.T) {
	p, gs, as := newTestProcessor(t)
	g := startedGame(t, gs)

	res, err := p.RecordAtBat(&RecordAtBatRequest{
		GameID:   testGameID,
		BatterID: "p1",
		Result:   ResultSingle,
	})
	if err != nil {
		t.Fatalf("RecordAtBat failed: %v", err)
	}

	if res.AtBat.ID == "" || res.AtBat.Timestamp == 0 {
		t.Error("at-bat id and timestamp should be assigned")
	}
	if res.AtBat.Seq != 1 {
		t.Errorf("Seq = %d, want 1", res.AtBat.Seq)
	}
	if res.AtBat.Before != (BaserunnerState{}) {
		t.Errorf("Before = %+v, want empty", res.AtBat.Before)
	}
	if res.AtBat.After != (BaserunnerState{First: "p1"}) {
		t.Errorf("After = %+v", res.AtBat.After)
	}
	if res.Game.Version != g.Version+1 {
		t.Errorf("Version = %d, want %d", res.Game.Version, g.Version+1)
	}
	if res.Game.CurrentBatter() != "p2" {
		t.Errorf("CurrentBatter = %s, want p2", res.Game.CurrentBatter())
	}

	// Both records survived.
	loaded, err := gs.LoadGame(testGameID)
	if err != nil {
		t.Fatalf("LoadGame failed: %v", err)
	}
	if loaded.Version != res.Game.Version {
		t.Errorf("stored Version = %d, want %d", loaded.Version, res.Game.Version)
	}
	atBats, err := as.ListByGame(testGameID)
	if err != nil {
		t.Fatalf("ListByGame failed: %v", err)
	}
	if len(atBats) != 1 || atBats[0].ID != res.AtBat.ID {
		t.Errorf("at-bat log = %d entries", len(atBats))
	}
}

func TestRecordAtBat_Rejections(t *testing.T) {
	p, gs, as := newTestProcessor(t)
	g := startedGame(t, gs)

	checkNothingWritten := func(t *testing.T) {
		t.Helper()
		loaded, _ := gs.LoadGame(testGameID)
		if loaded.Version != g.Version {
			t.Errorf("Version changed to %d", loaded.Version)
		}
		if n, _ := as.Count(testGameID); n != 0 {
			t.Errorf("at-bat log has %d entries, want 0", n)
		}
	}

	t.Run("wrong batter", func(t *testing.T) {
		_, err := p.RecordAtBat(&RecordAtBatRequest{
			GameID:   testGameID,
			BatterID: "p3",
			Result:   ResultSingle,
		})
		var se *StateError
		if !errors.As(err, &se) || se.Code != CodeBatterMismatch {
			t.Fatalf("expected batter_mismatch error, got %v", err)
		}
		checkNothingWritten(t)
	})

	t.Run("stale expected version", func(t *testing.T) {
		_, err := p.RecordAtBat(&RecordAtBatRequest{
			GameID:          testGameID,
			BatterID:        "p1",
			Result:          ResultSingle,
			ExpectedVersion: g.Version + 7,
		})
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		checkNothingWritten(t)
	})

	t.Run("validation failure", func(t *testing.T) {
		_, err := p.RecordAtBat(&RecordAtBatRequest{
			GameID:   testGameID,
			BatterID: "p1",
			Result:   ResultFieldersChoice,
			Override: map[string]string{BaseFirst: DecisionOut}, // no runner on first
		})
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected validation error, got %v", err)
		}
		checkNothingWritten(t)
	})

	t.Run("missing game", func(t *testing.T) {
		_, err := p.RecordAtBat(&RecordAtBatRequest{
			GameID:   "22222222-2222-4222-8222-222222222222",
			BatterID: "p1",
			Result:   ResultSingle,
		})
		var pe *PersistenceError
		if !errors.As(err, &pe) {
			t.Fatalf("expected persistence error, got %v", err)
		}
	})
}

func TestRecordAtBat_NotInProgress(t *testing.T) {
	p, gs, _ := newTestProcessor(t)
	g := &Game{ID: testGameID, Status: StatusSetup, OwnerID: "owner@example.com"}
	if err := gs.SaveGame(g); err != nil {
		t.Fatal(err)
	}

	_, err := p.RecordAtBat(&RecordAtBatRequest{
		GameID:   testGameID,
		BatterID: "p1",
		Result:   ResultSingle,
	})
	var se *StateError
	if !errors.As(err, &se) || se.Code != CodeWrongGameStatus {
		t.Fatalf("expected wrong_game_status error, got %v", err)
	}
}

func TestRecordAtBat_ConcurrentOneWinner(t *testing.T) {
	p, gs, as := newTestProcessor(t)
	g := startedGame(t, gs)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.RecordAtBat(&RecordAtBatRequest{
				GameID:          testGameID,
				BatterID:        "p1",
				Result:          ResultSingle,
				ExpectedVersion: g.Version,
			})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
	if conflicts != n-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, n-1)
	}
	if count, _ := as.Count(testGameID); count != 1 {
		t.Errorf("at-bat log has %d entries, want 1", count)
	}
}

func TestRecordAtBat_PreassignedIdentity(t *testing.T) {
	p, gs, _ := newTestProcessor(t)
	startedGame(t, gs)

	res, err := p.RecordAtBat(&RecordAtBatRequest{
		GameID:    testGameID,
		BatterID:  "p1",
		Result:    ResultWalk,
		AtBatID:   "33333333-3333-4333-8333-333333333333",
		Timestamp: 42,
	})
	if err != nil {
		t.Fatalf("RecordAtBat failed: %v", err)
	}
	if res.AtBat.ID != "33333333-3333-4333-8333-333333333333" {
		t.Errorf("ID = %s, want pre-assigned id", res.AtBat.ID)
	}
	if res.AtBat.Timestamp != 42 {
		t.Errorf("Timestamp = %d, want 42", res.AtBat.Timestamp)
	}
}
