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
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/c2FmZQ/storage"
)

// atBatLog is the on-disk shape of one game's at-bat history.
type atBatLog struct {
	GameID        string   `json:"gameId"`
	SchemaVersion int      `json:"schemaVersion"`
	AtBats        []*AtBat `json:"atBats"`
}

// AtBatStore manages the append-only at-bat log, one file per game.
// Records are never rewritten after they are appended.
type AtBatStore struct {
	DataDir string
	storage *storage.Storage
	mu      sync.Map // Stores *sync.Mutex for each gameId to protect appends
}

// NewAtBatStore creates a new AtBatStore.
func NewAtBatStore(dataDir string, s *storage.Storage) *AtBatStore {
	return &AtBatStore{
		DataDir: dataDir,
		storage: s,
		mu:      sync.Map{},
	}
}

func atBatFilename(gameID string) string {
	return filepath.Join("atbats", fmt.Sprintf("%s.json", url.PathEscape(gameID)))
}

// Append adds one at-bat to the end of its game's log and assigns its
// sequence number. Appending an id that is already present is a no-op,
// so log replay stays idempotent.
func (as *AtBatStore) Append(atBat *AtBat) error {
	m, _ := as.mu.LoadOrStore(atBat.GameID, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	log, err := as.loadLog(atBat.GameID)
	if err != nil {
		return err
	}
	for _, existing := range log.AtBats {
		if existing.ID == atBat.ID {
			atBat.Seq = existing.Seq
			return nil
		}
	}
	atBat.Seq = len(log.AtBats) + 1
	log.AtBats = append(log.AtBats, atBat)

	if err := as.storage.SaveDataFile(atBatFilename(atBat.GameID), log); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// ListByGame returns the game's at-bats in recording order. A game with
// no recorded at-bats yields an empty slice, not an error.
func (as *AtBatStore) ListByGame(gameID string) ([]*AtBat, error) {
	log, err := as.loadLog(gameID)
	if err != nil {
		return nil, err
	}
	return log.AtBats, nil
}

// Count returns the number of at-bats recorded for the game.
func (as *AtBatStore) Count(gameID string) (int, error) {
	log, err := as.loadLog(gameID)
	if err != nil {
		return 0, err
	}
	return len(log.AtBats), nil
}

// ListByGameAsJSON is a helper for API handlers that just want bytes.
func (as *AtBatStore) ListByGameAsJSON(gameID string) ([]byte, error) {
	atBats, err := as.ListByGame(gameID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(atBats)
}

// RestoreLog overwrites a game's at-bat log with the copy from a raft
// snapshot.
func (as *AtBatStore) RestoreLog(l *atBatLog) error {
	m, _ := as.mu.LoadOrStore(l.GameID, &sync.Mutex{})
	mutex := m.(*sync.Mutex)

	mutex.Lock()
	defer mutex.Unlock()

	if err := as.storage.SaveDataFile(atBatFilename(l.GameID), l); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

func (as *AtBatStore) loadLog(gameID string) (*atBatLog, error) {
	var log atBatLog
	if err := as.storage.ReadDataFile(atBatFilename(gameID), &log); err != nil {
		if os.IsNotExist(err) {
			return &atBatLog{
				GameID:        gameID,
				SchemaVersion: CurrentSchemaVersion,
				AtBats:        make([]*AtBat, 0),
			}, nil
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	if log.AtBats == nil {
		log.AtBats = make([]*AtBat, 0)
	}
	return &log, nil
}
