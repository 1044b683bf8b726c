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

// Schema Versions
const (
	SchemaVersionV1 = 1

	CurrentSchemaVersion = SchemaVersionV1
)

// Game Statuses
const (
	StatusSetup      = "setup"
	StatusInProgress = "in_progress"
	StatusSuspended  = "suspended"
	StatusCompleted  = "completed"
)

// Inning Halves
const (
	HalfTop    = "top"
	HalfBottom = "bottom"
)

// Bases
const (
	BaseFirst  = "first"
	BaseSecond = "second"
	BaseThird  = "third"
)

// Advancement Decisions
const (
	DecisionSecond = "second"
	DecisionThird  = "third"
	DecisionHome   = "home"
	DecisionOut    = "out"
	DecisionStay   = "stay"
)

// Batting Results
const (
	ResultSingle         = "single"
	ResultDouble         = "double"
	ResultTriple         = "triple"
	ResultHomeRun        = "home_run"
	ResultWalk           = "walk"
	ResultHitByPitch     = "hit_by_pitch"
	ResultStrikeout      = "strikeout"
	ResultGroundOut      = "ground_out"
	ResultFlyOut         = "fly_out"
	ResultSacFly         = "sac_fly"
	ResultFieldersChoice = "fielders_choice"
	ResultError          = "error"
	ResultDoublePlay     = "double_play"
)

// outsPerHalfInning is fixed by the rules of the game.
const outsPerHalfInning = 3
