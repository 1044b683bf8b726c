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
	"strings"
)

// Advancement is the fully resolved outcome of one plate appearance:
// the complete per-base decision map, the resulting base occupancy, and
// the scoring consequences.
type Advancement struct {
	Decisions      map[string]string `json:"decisions"`
	State          BaserunnerState   `json:"state"`
	ScoringRunners []string          `json:"scoringRunners,omitempty"`
	Runs           int               `json:"runs"`
	RBIs           int               `json:"rbis"`
	OutsRecorded   int               `json:"outsRecorded"`
	BatterOut      bool              `json:"batterOut"`
}

// baseOrder ranks bases for forward-motion checks. Home ranks above
// every base.
var baseOrder = map[string]int{
	BaseFirst:    1,
	BaseSecond:   2,
	BaseThird:    3,
	DecisionHome: 4,
}

// ResolveAdvancement computes the complete advancement for one at-bat.
// Defaults are computed per result, the operator's override (possibly
// empty) is layered on top, and the merged decision map is validated as
// a whole. On any validation failure the returned error describes the
// problem and nothing else is returned.
//
// outs is the out count before the play, needed for the sac-fly
// precondition and the remaining-outs budget on "out" decisions.
func ResolveAdvancement(result, batterID string, state BaserunnerState, override map[string]string, outs int) (*Advancement, error) {
	if !ValidBattingResult(result) {
		return nil, newValidationError(CodeUnknownResult, "unknown batting result %q", result)
	}
	if result == ResultSacFly && outs >= outsPerHalfInning-1 && state.Third != "" {
		return nil, newValidationError(CodeInvalidOutCount, "sac fly cannot score a run with %d outs", outs)
	}

	decisions := defaultDecisions(result, state)
	for base, dest := range override {
		if !state.Occupied(base) {
			return nil, newValidationError(CodeUnknownDecision, "no runner on %s base", base)
		}
		if !validDecision(base, dest) {
			return nil, newValidationError(CodeUnknownDecision, "runner on %s base cannot advance to %q", base, dest)
		}
		decisions[base] = dest
	}

	if err := checkComplete(state, decisions); err != nil {
		return nil, err
	}
	return applyDecisions(result, batterID, state, decisions, outs)
}

// defaultDecisions builds the per-result default decision map for every
// occupied base. Fielder's choice has no default; the operator decides.
func defaultDecisions(result string, state BaserunnerState) map[string]string {
	decisions := make(map[string]string)
	switch result {
	case ResultHomeRun, ResultTriple:
		for _, base := range state.occupiedBases() {
			decisions[base] = DecisionHome
		}
	case ResultDouble:
		for _, base := range state.occupiedBases() {
			decisions[base] = advanceBy(base, 2)
		}
	case ResultSingle, ResultError:
		for _, base := range state.occupiedBases() {
			decisions[base] = advanceBy(base, 1)
		}
	case ResultWalk, ResultHitByPitch:
		for _, base := range state.occupiedBases() {
			if forced(state, base) {
				decisions[base] = advanceBy(base, 1)
			} else {
				decisions[base] = DecisionStay
			}
		}
	case ResultSacFly:
		for _, base := range state.occupiedBases() {
			decisions[base] = DecisionStay
		}
		if state.Third != "" {
			decisions[BaseThird] = DecisionHome
		}
	case ResultDoublePlay:
		for _, base := range state.occupiedBases() {
			decisions[base] = DecisionStay
		}
		if lead := leadForcedBase(state); lead != "" {
			decisions[lead] = DecisionOut
		}
	case ResultStrikeout, ResultGroundOut, ResultFlyOut:
		for _, base := range state.occupiedBases() {
			decisions[base] = DecisionStay
		}
	}
	return decisions
}

// forced reports whether the runner on base is part of the unbroken
// forced chain starting at first.
func forced(state BaserunnerState, base string) bool {
	switch base {
	case BaseFirst:
		return state.First != ""
	case BaseSecond:
		return state.First != "" && state.Second != ""
	case BaseThird:
		return state.First != "" && state.Second != "" && state.Third != ""
	}
	return false
}

// leadForcedBase returns the most advanced base in the forced chain, or
// "" when first base is open and nothing is forced.
func leadForcedBase(state BaserunnerState) string {
	if state.First == "" {
		return ""
	}
	if state.Second != "" {
		if state.Third != "" {
			return BaseThird
		}
		return BaseSecond
	}
	return BaseFirst
}

// advanceBy moves a base n stations forward, capped at home.
func advanceBy(base string, n int) string {
	dest := base
	for i := 0; i < n && dest != DecisionHome; i++ {
		dest = nextBase(dest)
	}
	return dest
}

// validDecision reports whether dest is a legal decision for a runner
// originating on base. Runners never move backward.
func validDecision(base, dest string) bool {
	switch dest {
	case DecisionStay, DecisionOut, DecisionHome:
		return true
	case DecisionSecond, DecisionThird:
		return baseOrder[dest] > baseOrder[base]
	}
	return false
}

// checkComplete verifies that every occupied base has a decision.
func checkComplete(state BaserunnerState, decisions map[string]string) error {
	var missing []string
	for _, base := range []string{BaseFirst, BaseSecond, BaseThird} {
		if state.Occupied(base) {
			if _, ok := decisions[base]; !ok {
				missing = append(missing, base)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	var parts []string
	for _, base := range missing {
		parts = append(parts, "Select advancement for "+state.RunnerOn(base)+" on "+base+" base")
	}
	return newValidationError(CodeIncompleteAdvancement, "%s", strings.Join(parts, "; "))
}

// applyDecisions builds the post-play state from a complete decision
// map, checking the outs budget and destination conflicts.
func applyDecisions(result, batterID string, state BaserunnerState, decisions map[string]string, outs int) (*Advancement, error) {
	adv := &Advancement{
		Decisions: decisions,
		BatterOut: IsBatterOut(result),
	}
	if adv.BatterOut {
		adv.OutsRecorded++
	}

	// occupants collects every identity landing on a base, batter first
	// so that conflict messages read the way operators expect.
	occupants := map[string][]string{}
	if dest := BatterDestination(result); dest != "" {
		if dest == DecisionHome {
			adv.ScoringRunners = append(adv.ScoringRunners, batterID)
		} else {
			occupants[dest] = append(occupants[dest], "Batter")
		}
	}

	// Lead runner first so a trailing runner taking a vacated base does
	// not read as a conflict.
	var scored []string
	for _, base := range state.occupiedBases() {
		runner := state.RunnerOn(base)
		switch dest := decisions[base]; dest {
		case DecisionStay:
			occupants[base] = append(occupants[base], runner)
		case DecisionOut:
			adv.OutsRecorded++
		case DecisionHome:
			scored = append(scored, runner)
		default:
			occupants[dest] = append(occupants[dest], runner)
		}
	}
	// Runners cross the plate before the batter.
	adv.ScoringRunners = append(scored, adv.ScoringRunners...)

	if outs+adv.OutsRecorded > outsPerHalfInning {
		return nil, newValidationError(CodeInvalidOutCount, "play records %d outs with %d already out", adv.OutsRecorded, outs)
	}

	var conflicts []string
	for base, ids := range occupants {
		if len(ids) > 1 {
			conflicts = append(conflicts, "Multiple runners cannot occupy "+base+" base: "+strings.Join(orderIdentities(ids), ", "))
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, newValidationError(CodeBaseConflict, "%s", strings.Join(conflicts, "; "))
	}

	var after BaserunnerState
	for base, ids := range occupants {
		after.place(base, ids[0])
	}
	// The batter occupies a base under the "Batter" label above; swap in
	// the real id now that conflicts are resolved.
	if dest := BatterDestination(result); dest != "" && dest != DecisionHome {
		after.place(dest, batterID)
	}

	adv.State = after
	adv.Runs = len(adv.ScoringRunners)
	if CreditsRBIs(result) {
		adv.RBIs = adv.Runs
	}
	return adv, nil
}

// orderIdentities puts the batter ahead of runner ids in a conflict
// message.
func orderIdentities(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "Batter" {
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if id != "Batter" {
			out = append(out, id)
		}
	}
	return out
}
