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

// Permissions defines access control for a game.
type Permissions struct {
	Public string            `json:"public"` // "none", "read"
	Users  map[string]string `json:"users"`  // "email": "read"|"write"
}

// Game represents the full game state as stored on disk. Transitions
// never mutate the receiver; each returns a fresh snapshot so readers
// holding an older value always see something consistent.
type Game struct {
	ID            string `json:"id"`
	SchemaVersion int    `json:"schemaVersion"`
	Name          string `json:"name,omitempty"`
	Opponent      string `json:"opponent,omitempty"`
	Date          string `json:"date,omitempty"`
	Location      string `json:"location,omitempty"`
	SeasonID      string `json:"seasonId,omitempty"`
	GameTypeID    string `json:"gameTypeId,omitempty"`
	TeamID        string `json:"teamId,omitempty"`
	Home          bool   `json:"home"`
	Status        string `json:"status"`
	OwnerID       string `json:"ownerId"`

	LineupID string  `json:"lineupId,omitempty"`
	Lineup   *Lineup `json:"lineup,omitempty"`

	Inning      int             `json:"inning"`
	Half        string          `json:"half,omitempty"`
	Outs        int             `json:"outs"`
	BatterIndex int             `json:"batterIndex"`
	Bases       BaserunnerState `json:"bases"`
	Scoreboard  Scoreboard      `json:"scoreboard"`

	Permissions Permissions `json:"permissions,omitempty"`

	// Version is the optimistic-concurrency token. Every successful
	// save increments it; a save against a stale version fails with
	// ErrConflict.
	Version uint64 `json:"version"`

	// LastRaftIndex tracks the index of the last Raft log entry applied
	// to this game. Used for idempotency during log replay.
	LastRaftIndex uint64 `json:"lastRaftIndex,omitempty"`
}

func (g *Game) normalize() {
	if g.SchemaVersion == 0 {
		g.SchemaVersion = CurrentSchemaVersion
	}
	if g.Status == "" {
		g.Status = StatusSetup
	}
	if g.Permissions.Users == nil {
		g.Permissions.Users = make(map[string]string)
	}
}

// clone returns a shallow copy with its own scoreboard rows.
func (g *Game) clone() *Game {
	out := *g
	out.Scoreboard.Innings = make([]InningLine, len(g.Scoreboard.Innings))
	copy(out.Scoreboard.Innings, g.Scoreboard.Innings)
	if g.Lineup != nil {
		lu := *g.Lineup
		lu.Entries = make([]LineupEntry, len(g.Lineup.Entries))
		copy(lu.Entries, g.Lineup.Entries)
		out.Lineup = &lu
	}
	return &out
}

// CurrentBatter returns the player id due up, or "" before start().
func (g *Game) CurrentBatter() string {
	if g.Lineup == nil {
		return ""
	}
	return g.Lineup.BatterAt(g.BatterIndex)
}

// Start moves the game from setup to in_progress with the given lineup.
// The lineup must validate as a contiguous batting order.
func (g *Game) Start(lineup *Lineup) (*Game, error) {
	if g.Status != StatusSetup {
		return nil, newStateError(CodeWrongGameStatus, "cannot start game in status %q", g.Status)
	}
	if lineup == nil {
		return nil, newStateError(CodeIncompleteLineup, "game %s has no lineup", g.ID)
	}
	if err := lineup.Validate(); err != nil {
		return nil, err
	}
	out := g.clone()
	out.Status = StatusInProgress
	out.LineupID = lineup.ID
	out.Lineup = lineup
	out.Inning = 1
	if g.Home {
		out.Half = HalfBottom
	} else {
		out.Half = HalfTop
	}
	out.Outs = 0
	out.BatterIndex = 0
	out.Bases = BaserunnerState{}
	return out, nil
}

// WithAtBat returns the next snapshot after one resolved plate
// appearance: bases replaced, runs posted to the scoreboard, outs and
// inning bookkeeping applied, batter index advanced.
func (g *Game) WithAtBat(adv *Advancement) (*Game, error) {
	if g.Status != StatusInProgress {
		return nil, newStateError(CodeWrongGameStatus, "cannot record an at-bat in status %q", g.Status)
	}
	out := g.clone()
	out.Bases = adv.State
	out.Scoreboard = out.Scoreboard.AddRuns(out.Inning, out.Half, adv.Runs)
	out.Outs += adv.OutsRecorded
	if out.Outs >= outsPerHalfInning {
		out.Outs = 0
		out.Bases = BaserunnerState{}
		if out.Half == HalfTop {
			out.Half = HalfBottom
		} else {
			out.Half = HalfTop
			out.Inning++
		}
	}
	out.BatterIndex = (out.BatterIndex + 1) % out.Lineup.Size()
	return out, nil
}

// Suspend pauses an in-progress game.
func (g *Game) Suspend() (*Game, error) {
	if g.Status != StatusInProgress {
		return nil, newStateError(CodeWrongGameStatus, "cannot suspend game in status %q", g.Status)
	}
	out := g.clone()
	out.Status = StatusSuspended
	return out, nil
}

// Resume returns a suspended game to play.
func (g *Game) Resume() (*Game, error) {
	if g.Status != StatusSuspended {
		return nil, newStateError(CodeWrongGameStatus, "cannot resume game in status %q", g.Status)
	}
	out := g.clone()
	out.Status = StatusInProgress
	return out, nil
}

// Complete finalizes the game. Completed is terminal; no further
// at-bats are accepted.
func (g *Game) Complete() (*Game, error) {
	if g.Status != StatusInProgress {
		return nil, newStateError(CodeWrongGameStatus, "cannot complete game in status %q", g.Status)
	}
	out := g.clone()
	out.Status = StatusCompleted
	out.Bases = BaserunnerState{}
	return out, nil
}
