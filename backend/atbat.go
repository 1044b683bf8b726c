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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AtBat is the immutable record of one completed plate appearance.
// Exactly one is appended per successful RecordAtBat and never changed
// afterward.
type AtBat struct {
	ID             string            `json:"id"`
	GameID         string            `json:"gameId"`
	Seq            int               `json:"seq"`
	BatterID       string            `json:"batterId"`
	Inning         int               `json:"inning"`
	Half           string            `json:"half"`
	Result         string            `json:"result"`
	Before         BaserunnerState   `json:"before"`
	After          BaserunnerState   `json:"after"`
	Decisions      map[string]string `json:"decisions,omitempty"`
	ScoringRunners []string          `json:"scoringRunners,omitempty"`
	Runs           int               `json:"runs"`
	RBIs           int               `json:"rbis"`
	Outs           int               `json:"outs"`
	Balls          int               `json:"balls,omitempty"`
	Strikes        int               `json:"strikes,omitempty"`
	Timestamp      int64             `json:"timestamp"`
}

// RecordAtBatRequest carries one plate appearance to record. AtBatID
// and Timestamp may be pre-assigned by the caller so that replaying the
// request is deterministic; when empty they are filled in here.
type RecordAtBatRequest struct {
	GameID   string            `json:"gameId"`
	BatterID string            `json:"batterId"`
	Result   string            `json:"result"`
	Override map[string]string `json:"override,omitempty"`
	Balls    int               `json:"balls,omitempty"`
	Strikes  int               `json:"strikes,omitempty"`

	// ExpectedVersion, when non-zero, must match the stored game's
	// version or the call fails with ErrConflict.
	ExpectedVersion uint64 `json:"expectedVersion,omitempty"`

	AtBatID   string `json:"atBatId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`

	// RaftIndex is set when the request is applied from the replicated
	// log; the saved game records it for replay idempotency.
	RaftIndex uint64 `json:"-"`
}

// AtBatResult is what a successful RecordAtBat returns to the caller.
type AtBatResult struct {
	AtBat *AtBat `json:"atBat"`
	Game  *Game  `json:"game"`
	Runs  int    `json:"runs"`
	RBIs  int    `json:"rbis"`
}

// AtBatProcessor orchestrates the record-at-bat transaction: load,
// validate, resolve advancement, build the AtBat, compute the next Game
// snapshot, then persist the AtBat before the Game. The load-resolve-
// persist sequence is a critical section keyed by game id.
type AtBatProcessor struct {
	Games  *GameStore
	AtBats *AtBatStore

	mu sync.Map // gameId -> *sync.Mutex
}

// NewAtBatProcessor creates a processor over the two stores.
func NewAtBatProcessor(games *GameStore, atBats *AtBatStore) *AtBatProcessor {
	return &AtBatProcessor{Games: games, AtBats: atBats}
}

func (p *AtBatProcessor) lock(gameID string) *sync.Mutex {
	m, _ := p.mu.LoadOrStore(gameID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// RecordAtBat records one plate appearance. At most one concurrent call
// per game commits; the loser of a version race gets ErrConflict and
// nothing is written. Validation and state errors also leave both
// stores untouched.
func (p *AtBatProcessor) RecordAtBat(req *RecordAtBatRequest) (*AtBatResult, error) {
	mutex := p.lock(req.GameID)
	mutex.Lock()
	defer mutex.Unlock()

	game, err := p.Games.LoadGame(req.GameID)
	if err != nil {
		return nil, &PersistenceError{Op: fmt.Sprintf("load game %s", req.GameID), Err: err}
	}
	if req.ExpectedVersion != 0 && req.ExpectedVersion != game.Version {
		return nil, ErrConflict
	}
	if game.Status != StatusInProgress {
		return nil, newStateError(CodeWrongGameStatus, "game %s is %s, not in progress", game.ID, game.Status)
	}
	if current := game.CurrentBatter(); req.BatterID != current {
		return nil, newStateError(CodeBatterMismatch, "expected batter %s, got %s", current, req.BatterID)
	}

	adv, err := ResolveAdvancement(req.Result, req.BatterID, game.Bases, req.Override, game.Outs)
	if err != nil {
		return nil, err
	}

	next, err := game.WithAtBat(adv)
	if err != nil {
		return nil, err
	}

	id := req.AtBatID
	if id == "" {
		id = uuid.NewString()
	}
	ts := req.Timestamp
	if ts == 0 {
		ts = time.Now().UnixNano()
	}
	atBat := &AtBat{
		ID:             id,
		GameID:         game.ID,
		BatterID:       req.BatterID,
		Inning:         game.Inning,
		Half:           game.Half,
		Result:         req.Result,
		Before:         game.Bases,
		After:          adv.State,
		Decisions:      adv.Decisions,
		ScoringRunners: adv.ScoringRunners,
		Runs:           adv.Runs,
		RBIs:           adv.RBIs,
		Outs:           adv.OutsRecorded,
		Balls:          req.Balls,
		Strikes:        req.Strikes,
		Timestamp:      ts,
	}

	if req.RaftIndex > 0 {
		next.LastRaftIndex = req.RaftIndex
	}

	// AtBat first, Game second. A crash in between leaves an orphan
	// AtBat, never a Game pointing at a missing record.
	if err := p.AtBats.Append(atBat); err != nil {
		return nil, &PersistenceError{Op: fmt.Sprintf("append at-bat for game %s", game.ID), Err: err}
	}
	saved, err := p.Games.SaveGameCAS(next, game.Version)
	if err != nil {
		return nil, err
	}

	return &AtBatResult{AtBat: atBat, Game: saved, Runs: adv.Runs, RBIs: adv.RBIs}, nil
}
