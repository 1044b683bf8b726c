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

// InningLine is one row of the scoreboard.
type InningLine struct {
	Inning int `json:"inning"`
	Away   int `json:"away"`
	Home   int `json:"home"`
}

// Scoreboard is the per-inning run ledger plus aggregate totals. Values
// are treated as immutable snapshots; AddRuns returns a new Scoreboard.
type Scoreboard struct {
	Innings   []InningLine `json:"innings"`
	AwayTotal int          `json:"awayTotal"`
	HomeTotal int          `json:"homeTotal"`
}

// AddRuns returns a copy of the scoreboard with runs added for the
// batting team in the given inning and half. The away team bats in the
// top half. Rows are extended as needed so the ledger stays contiguous.
func (s Scoreboard) AddRuns(inning int, half string, runs int) Scoreboard {
	out := Scoreboard{
		Innings:   make([]InningLine, len(s.Innings)),
		AwayTotal: s.AwayTotal,
		HomeTotal: s.HomeTotal,
	}
	copy(out.Innings, s.Innings)
	for len(out.Innings) < inning {
		out.Innings = append(out.Innings, InningLine{Inning: len(out.Innings) + 1})
	}
	if runs == 0 {
		return out
	}
	if half == HalfTop {
		out.Innings[inning-1].Away += runs
		out.AwayTotal += runs
	} else {
		out.Innings[inning-1].Home += runs
		out.HomeTotal += runs
	}
	return out
}

// Totals returns the aggregate away and home run counts.
func (s Scoreboard) Totals() (away, home int) {
	return s.AwayTotal, s.HomeTotal
}
