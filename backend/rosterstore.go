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
	"iter"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/c2FmZQ/storage"
)

// Player represents a player on a roster.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
	Pos    string `json:"pos,omitempty"`
}

// RosterRoles defines the members of a roster by their role.
type RosterRoles struct {
	Admins       []string `json:"admins"`
	Scorekeepers []string `json:"scorekeepers"`
	Spectators   []string `json:"spectators"`
}

func (r *RosterRoles) normalize() {
	if r.Admins == nil {
		r.Admins = make([]string, 0)
	}
	if r.Scorekeepers == nil {
		r.Scorekeepers = make([]string, 0)
	}
	if r.Spectators == nil {
		r.Spectators = make([]string, 0)
	}
}

// Roster represents a persistent team roster, its saved lineups, and
// its permissions. It is the source games draw their lineups from.
type Roster struct {
	ID            string      `json:"id"`
	SchemaVersion int         `json:"schemaVersion"`
	Name          string      `json:"name,omitempty"`
	ShortName     string      `json:"shortName,omitempty"`
	Color         string      `json:"color,omitempty"`
	Players       []Player    `json:"players,omitempty"`
	Lineups       []*Lineup   `json:"lineups,omitempty"`
	OwnerID       string      `json:"ownerId"`
	Roles         RosterRoles `json:"roles,omitempty"`
	UpdatedAt     int64       `json:"updatedAt,omitempty"`

	// LastRaftIndex tracks the index of the last Raft log entry applied
	// to this roster. Used for idempotency during log replay.
	LastRaftIndex uint64 `json:"lastRaftIndex,omitempty"`
}

func (r *Roster) normalize() {
	if r.SchemaVersion == 0 {
		r.SchemaVersion = CurrentSchemaVersion
	}
	if r.Players == nil {
		r.Players = make([]Player, 0)
	}
	r.Roles.normalize()
}

// LineupByID returns the named lineup, or ErrNotFound.
func (r *Roster) LineupByID(lineupID string) (*Lineup, error) {
	for _, lu := range r.Lineups {
		if lu.ID == lineupID {
			return lu, nil
		}
	}
	return nil, fmt.Errorf("lineup %s: %w", lineupID, ErrNotFound)
}

// PlayerByID returns the named player, or ErrNotFound.
func (r *Roster) PlayerByID(playerID string) (*Player, error) {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i], nil
		}
	}
	return nil, fmt.Errorf("player %s: %w", playerID, ErrNotFound)
}

// RosterStore manages roster persistence to disk.
type RosterStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.Mutex for each rosterId to protect writes
}

// NewRosterStore creates a new RosterStore.
func NewRosterStore(dataDir string, s *storage.Storage) *RosterStore {
	return &RosterStore{
		DataDir: dataDir,
		storage: s,
		mu:      sync.Map{},
	}
}

func rosterFilename(rosterID string) string {
	return filepath.Join("rosters", fmt.Sprintf("%s.json", url.PathEscape(rosterID)))
}

// SaveRoster saves the roster data atomically.
func (rs *RosterStore) SaveRoster(roster *Roster) error {
	m, _ := rs.mu.LoadOrStore(roster.ID, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	if err := rs.storage.SaveDataFile(rosterFilename(roster.ID), roster); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// LoadRoster loads the roster data by ID.
func (rs *RosterStore) LoadRoster(rosterID string) (*Roster, error) {
	var r Roster
	if err := rs.storage.ReadDataFile(rosterFilename(rosterID), &r); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	r.normalize()
	return &r, nil
}

// LoadRosterAsJSON is a helper for API handlers that just want bytes.
func (rs *RosterStore) LoadRosterAsJSON(rosterID string) ([]byte, error) {
	r, err := rs.LoadRoster(rosterID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(r)
}

// ListAllRosterIDs returns the ids of every roster on disk.
func (rs *RosterStore) ListAllRosterIDs() ([]string, error) {
	rostersDir := filepath.Join(rs.DataDir, "rosters")
	files, err := os.ReadDir(rostersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read rosters directory: %w", err)
	}
	var ids []string
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		if id, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json")); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// RosterMetadata contains only the fields needed for indexing.
type RosterMetadata struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	OwnerID   string      `json:"ownerId"`
	Roles     RosterRoles `json:"roles"`
	UpdatedAt int64       `json:"updatedAt"`
}

// ListAllRosterMetadata returns an iterator over metadata for all rosters.
func (rs *RosterStore) ListAllRosterMetadata() iter.Seq2[RosterMetadata, error] {
	return func(yield func(RosterMetadata, error) bool) {
		rostersDir := filepath.Join(rs.DataDir, "rosters")
		files, err := os.ReadDir(rostersDir)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(RosterMetadata{}, fmt.Errorf("could not read rosters directory: %w", err))
			}
			return
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			rosterID, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
			if err != nil {
				continue
			}

			r, err := rs.LoadRoster(rosterID)
			if err != nil {
				continue
			}

			if !yield(RosterMetadata{
				ID:        r.ID,
				Name:      r.Name,
				OwnerID:   r.OwnerID,
				Roles:     r.Roles,
				UpdatedAt: r.UpdatedAt,
			}, nil) {
				return
			}
		}
	}
}

// ListAllRosters returns an iterator over all rosters found in the flat
// rosters directory.
func (rs *RosterStore) ListAllRosters() iter.Seq2[*Roster, error] {
	return func(yield func(*Roster, error) bool) {
		rostersDir := filepath.Join(rs.DataDir, "rosters")
		files, err := os.ReadDir(rostersDir)
		if err != nil {
			if !os.IsNotExist(err) {
				yield(nil, fmt.Errorf("could not read rosters directory: %w", err))
			}
			return
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			rosterID, err := url.PathUnescape(strings.TrimSuffix(file.Name(), ".json"))
			if err != nil {
				continue
			}

			r, err := rs.LoadRoster(rosterID)
			if err != nil {
				log.Printf("Warning: could not load roster '%s': %v", rosterID, err)
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}
