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
	"encoding/json"
	"fmt"
	"net/mail"
	"regexp"
)

// uuidRegex is a regex for standard UUIDs (8-4-4-4-12 hex digits)
var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

// isValidUUID checks if the string is a valid UUID.
func isValidUUID(id string) bool {
	return uuidRegex.MatchString(id)
}

// isValidEmail checks if the string is a valid email address.
func isValidEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

const (
	CurrentProtocolVersion = 1
	CurrentAppVersion      = "0.1.4"
)

// validateStringLen checks if the string length is within the limit.
func validateStringLen(s string, max int, name string) error {
	if len(s) > max {
		return fmt.Errorf("%s too long (max %d chars)", name, max)
	}
	return nil
}

// ValidateGameData performs shape-level validation of a full game
// document before it enters the log. Domain rules (advancement, state
// transitions) are enforced by the engine, not here.
func ValidateGameData(data []byte) error {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("invalid game JSON: %w", err)
	}
	return ValidateGame(&g)
}

// ValidateGame checks the structural fields of a game document.
func ValidateGame(g *Game) error {
	if !isValidUUID(g.ID) {
		return fmt.Errorf("invalid game ID format: %s", g.ID)
	}
	switch g.Status {
	case "", StatusSetup, StatusInProgress, StatusSuspended, StatusCompleted:
	default:
		return fmt.Errorf("invalid game status: %s", g.Status)
	}
	if err := validateStringLen(g.Name, 200, "name"); err != nil {
		return err
	}
	if err := validateStringLen(g.Opponent, 200, "opponent"); err != nil {
		return err
	}
	if err := validateStringLen(g.Location, 200, "location"); err != nil {
		return err
	}
	if g.Outs < 0 || g.Outs >= outsPerHalfInning {
		return fmt.Errorf("invalid out count: %d", g.Outs)
	}
	if g.Inning < 0 || g.Inning > 99 {
		return fmt.Errorf("invalid inning: %d", g.Inning)
	}
	switch g.Half {
	case "", HalfTop, HalfBottom:
	default:
		return fmt.Errorf("invalid inning half: %s", g.Half)
	}
	if g.BatterIndex < 0 || g.BatterIndex > 999 {
		return fmt.Errorf("invalid batter index: %d", g.BatterIndex)
	}
	if g.Lineup != nil {
		if err := validateLineupShape(g.Lineup); err != nil {
			return err
		}
	}
	for email := range g.Permissions.Users {
		if !isValidEmail(email) {
			return fmt.Errorf("invalid email in permissions: %s", email)
		}
	}
	return nil
}

// ValidateRecordAtBatRequest checks the structural fields of one
// record-at-bat request before it is proposed to the log.
func ValidateRecordAtBatRequest(req *RecordAtBatRequest) error {
	if !isValidUUID(req.GameID) {
		return fmt.Errorf("invalid game ID format: %s", req.GameID)
	}
	if req.BatterID == "" {
		return fmt.Errorf("missing batter ID")
	}
	if err := validateStringLen(req.BatterID, 100, "batterId"); err != nil {
		return err
	}
	if !ValidBattingResult(req.Result) {
		return fmt.Errorf("unknown batting result: %s", req.Result)
	}
	for base, dest := range req.Override {
		switch base {
		case BaseFirst, BaseSecond, BaseThird:
		default:
			return fmt.Errorf("invalid override base: %s", base)
		}
		switch dest {
		case DecisionSecond, DecisionThird, DecisionHome, DecisionOut, DecisionStay:
		default:
			return fmt.Errorf("invalid override decision: %s", dest)
		}
	}
	if req.Balls < 0 || req.Balls > 4 {
		return fmt.Errorf("invalid ball count: %d", req.Balls)
	}
	if req.Strikes < 0 || req.Strikes > 3 {
		return fmt.Errorf("invalid strike count: %d", req.Strikes)
	}
	if req.AtBatID != "" && !isValidUUID(req.AtBatID) {
		return fmt.Errorf("invalid at-bat ID format: %s", req.AtBatID)
	}
	return nil
}

// ValidateRosterData performs shape-level validation of a roster
// document.
func ValidateRosterData(data []byte) error {
	var r Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("invalid roster JSON: %w", err)
	}
	return ValidateRoster(&r)
}

// ValidateRoster checks the structural fields of a roster document.
func ValidateRoster(r *Roster) error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid roster ID format: %s", r.ID)
	}
	if err := validateStringLen(r.Name, 200, "name"); err != nil {
		return err
	}
	if err := validateStringLen(r.ShortName, 20, "shortName"); err != nil {
		return err
	}
	if len(r.Players) > 999 {
		return fmt.Errorf("too many players: %d", len(r.Players))
	}
	for i, p := range r.Players {
		if p.ID == "" {
			return fmt.Errorf("player at index %d has no ID", i)
		}
		if err := validateStringLen(p.Name, 100, "player name"); err != nil {
			return err
		}
		if err := validateStringLen(p.Number, 4, "player number"); err != nil {
			return err
		}
	}
	for _, lu := range r.Lineups {
		if err := validateLineupShape(lu); err != nil {
			return err
		}
	}
	for _, emails := range [][]string{r.Roles.Admins, r.Roles.Scorekeepers, r.Roles.Spectators} {
		for _, email := range emails {
			if !isValidEmail(email) {
				return fmt.Errorf("invalid email in roles: %s", email)
			}
		}
	}
	return nil
}

// validateLineupShape bounds-checks a lineup document. Contiguity of
// the batting order is the engine's concern (Lineup.Validate); this
// only rejects garbage input.
func validateLineupShape(lu *Lineup) error {
	if lu.ID == "" {
		return fmt.Errorf("lineup has no ID")
	}
	if len(lu.Entries) > 999 {
		return fmt.Errorf("too many lineup entries: %d", len(lu.Entries))
	}
	for i, e := range lu.Entries {
		if e.PlayerID == "" {
			return fmt.Errorf("lineup entry at index %d has no player", i)
		}
		if e.BattingOrder < 0 || e.BattingOrder > 999 {
			return fmt.Errorf("invalid batting order: %d", e.BattingOrder)
		}
		if err := validateStringLen(e.DefensivePosition, 10, "defensivePosition"); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCommand validates a Raft command before Propose.
func ValidateCommand(cmd *RaftCommand) error {
	switch cmd.Type {
	case CmdSaveGame:
		if cmd.GameData == nil {
			return fmt.Errorf("missing game data")
		}
		return ValidateGameData(*cmd.GameData)
	case CmdRecordAtBat:
		if cmd.AtBat == nil {
			return fmt.Errorf("missing at-bat payload")
		}
		return ValidateRecordAtBatRequest(cmd.AtBat)
	case CmdSaveRoster:
		if cmd.RosterData == nil {
			return fmt.Errorf("missing roster data")
		}
		return ValidateRosterData(*cmd.RosterData)
	case CmdNodeMeta, CmdNodeLeft:
		if cmd.NodeMeta == nil {
			return fmt.Errorf("missing node meta")
		}
		return nil
	case CmdUpdateAccessPolicy:
		if cmd.PolicyData == nil {
			return fmt.Errorf("missing policy data")
		}
		for _, email := range cmd.PolicyData.Admins {
			if !isValidEmail(email) {
				return fmt.Errorf("invalid admin email: %s", email)
			}
		}
		return nil
	case CmdMetricsUpdate:
		return nil
	default:
		return fmt.Errorf("unknown command type: %s", cmd.Type)
	}
}
