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
	"sort"
)

// LineupEntry is one slot in the batting order.
type LineupEntry struct {
	BattingOrder      int    `json:"battingOrder"`
	PlayerID          string `json:"playerId"`
	DefensivePosition string `json:"defensivePosition,omitempty"`
	IsStarter         bool   `json:"isStarter"`
}

// Lineup is the ordered batting sequence for one team in one game.
// Starters carry batting-order numbers 1..N; substitutes have no order
// number until they replace a starter.
type Lineup struct {
	ID      string        `json:"id"`
	TeamID  string        `json:"teamId,omitempty"`
	Entries []LineupEntry `json:"entries"`
}

// Starters returns the starting entries sorted by batting order.
func (l *Lineup) Starters() []LineupEntry {
	var starters []LineupEntry
	for _, e := range l.Entries {
		if e.IsStarter {
			starters = append(starters, e)
		}
	}
	sort.Slice(starters, func(i, j int) bool {
		return starters[i].BattingOrder < starters[j].BattingOrder
	})
	return starters
}

// Validate checks that the starting batting order is a contiguous 1..N
// permutation with no duplicate slot or player.
func (l *Lineup) Validate() error {
	starters := l.Starters()
	if len(starters) == 0 {
		return newStateError(CodeIncompleteLineup, "lineup %s has no starters", l.ID)
	}
	seenOrder := make(map[int]bool)
	seenPlayer := make(map[string]bool)
	for _, e := range starters {
		if e.PlayerID == "" {
			return newStateError(CodeIncompleteLineup, "batting order %d has no player", e.BattingOrder)
		}
		if seenOrder[e.BattingOrder] {
			return newStateError(CodeIncompleteLineup, "duplicate batting order %d", e.BattingOrder)
		}
		if seenPlayer[e.PlayerID] {
			return newStateError(CodeIncompleteLineup, "player %s appears twice in the order", e.PlayerID)
		}
		seenOrder[e.BattingOrder] = true
		seenPlayer[e.PlayerID] = true
	}
	for i := 1; i <= len(starters); i++ {
		if !seenOrder[i] {
			return newStateError(CodeIncompleteLineup, "batting order is missing slot %d", i)
		}
	}
	return nil
}

// BatterAt returns the player id batting at index (0-based, modulo the
// order size).
func (l *Lineup) BatterAt(index int) string {
	starters := l.Starters()
	if len(starters) == 0 {
		return ""
	}
	return starters[index%len(starters)].PlayerID
}

// Size returns the number of slots in the batting order.
func (l *Lineup) Size() int {
	return len(l.Starters())
}
