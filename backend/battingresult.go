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

// resultProfile captures the fixed scoring properties of a batting result.
type resultProfile struct {
	Hit         bool
	BatterOut   bool
	AtBat       bool
	CreditsRBIs bool
	Forces      bool
	// BatterDest is where the batter ends up when not out, "" otherwise.
	BatterDest string
}

var resultProfiles = map[string]resultProfile{
	ResultSingle:         {Hit: true, AtBat: true, CreditsRBIs: true, BatterDest: BaseFirst},
	ResultDouble:         {Hit: true, AtBat: true, CreditsRBIs: true, BatterDest: BaseSecond},
	ResultTriple:         {Hit: true, AtBat: true, CreditsRBIs: true, BatterDest: BaseThird},
	ResultHomeRun:        {Hit: true, AtBat: true, CreditsRBIs: true, BatterDest: DecisionHome},
	ResultWalk:           {CreditsRBIs: true, Forces: true, BatterDest: BaseFirst},
	ResultHitByPitch:     {CreditsRBIs: true, Forces: true, BatterDest: BaseFirst},
	ResultStrikeout:      {BatterOut: true, AtBat: true},
	ResultGroundOut:      {BatterOut: true, AtBat: true, CreditsRBIs: true},
	ResultFlyOut:         {BatterOut: true, AtBat: true, CreditsRBIs: true},
	ResultSacFly:         {BatterOut: true, CreditsRBIs: true},
	ResultFieldersChoice: {AtBat: true, CreditsRBIs: true, BatterDest: BaseFirst},
	ResultError:          {AtBat: true, BatterDest: BaseFirst},
	ResultDoublePlay:     {BatterOut: true, AtBat: true},
}

// ValidBattingResult reports whether s is one of the known result codes.
func ValidBattingResult(s string) bool {
	_, ok := resultProfiles[s]
	return ok
}

// IsHit reports whether the result counts as a base hit.
func IsHit(result string) bool {
	return resultProfiles[result].Hit
}

// IsBatterOut reports whether the batter is retired on the play.
func IsBatterOut(result string) bool {
	return resultProfiles[result].BatterOut
}

// CountsAsAtBat reports whether the result counts against the batter's
// official at-bat total. Walks, hit-by-pitch, and sacrifice flies do not.
func CountsAsAtBat(result string) bool {
	return resultProfiles[result].AtBat
}

// CreditsRBIs reports whether runs scoring on the play are credited to
// the batter. Errors and double plays never credit RBIs.
func CreditsRBIs(result string) bool {
	return resultProfiles[result].CreditsRBIs
}

// ForcesRunners reports whether the result forces the unbroken runner
// chain starting at first base to advance. Only walks and hit-by-pitch
// force runners.
func ForcesRunners(result string) bool {
	return resultProfiles[result].Forces
}

// BatterDestination returns the base the batter reaches, or DecisionHome
// for a home run. It returns "" when the batter is out.
func BatterDestination(result string) string {
	return resultProfiles[result].BatterDest
}

// TotalBases returns the bases credited to the batter for slugging:
// 1 for a single, up to 4 for a home run, 0 for anything else.
func TotalBases(result string) int {
	switch result {
	case ResultSingle:
		return 1
	case ResultDouble:
		return 2
	case ResultTriple:
		return 3
	case ResultHomeRun:
		return 4
	}
	return 0
}

// RequiresAdvancementChoice reports whether the result has no default
// advancement for occupied bases, so the operator must decide where
// each runner goes.
func RequiresAdvancementChoice(result string) bool {
	return result == ResultFieldersChoice
}

