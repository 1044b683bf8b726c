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

// PlayerStats is the single-game batting line for one player, derived
// entirely from the at-bat log.
type PlayerStats struct {
	PlayerID         string  `json:"playerId"`
	PlateAppearances int     `json:"plateAppearances"`
	AtBats           int     `json:"atBats"`
	Hits             int     `json:"hits"`
	Walks            int     `json:"walks"`
	HitByPitch       int     `json:"hitByPitch"`
	SacFlies         int     `json:"sacFlies"`
	Strikeouts       int     `json:"strikeouts"`
	RBIs             int     `json:"rbis"`
	RunsScored       int     `json:"runsScored"`
	TotalBases       int     `json:"totalBases"`
	BattingAverage   float64 `json:"battingAverage"`
	OnBasePercentage float64 `json:"onBasePercentage"`
	Slugging         float64 `json:"slugging"`
}

// CalculateStats aggregates the at-bat log into per-player batting
// lines, sorted by player id. It is a deterministic function of its
// input and keeps no state.
func CalculateStats(atBats []*AtBat) []PlayerStats {
	byPlayer := make(map[string]*PlayerStats)
	get := func(id string) *PlayerStats {
		s, ok := byPlayer[id]
		if !ok {
			s = &PlayerStats{PlayerID: id}
			byPlayer[id] = s
		}
		return s
	}

	for _, ab := range atBats {
		s := get(ab.BatterID)
		s.PlateAppearances++
		if CountsAsAtBat(ab.Result) {
			s.AtBats++
		}
		if IsHit(ab.Result) {
			s.Hits++
		}
		s.TotalBases += TotalBases(ab.Result)
		switch ab.Result {
		case ResultWalk:
			s.Walks++
		case ResultHitByPitch:
			s.HitByPitch++
		case ResultSacFly:
			s.SacFlies++
		case ResultStrikeout:
			s.Strikeouts++
		}
		s.RBIs += ab.RBIs
		for _, runner := range ab.ScoringRunners {
			get(runner).RunsScored++
		}
	}

	out := make([]PlayerStats, 0, len(byPlayer))
	for _, s := range byPlayer {
		if s.AtBats > 0 {
			s.BattingAverage = float64(s.Hits) / float64(s.AtBats)
			s.Slugging = float64(s.TotalBases) / float64(s.AtBats)
		}
		if denom := s.AtBats + s.Walks + s.HitByPitch + s.SacFlies; denom > 0 {
			s.OnBasePercentage = float64(s.Hits+s.Walks+s.HitByPitch) / float64(denom)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}
