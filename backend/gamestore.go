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

// GameStore manages game persistence to disk.
type GameStore struct {
	DataDir string
	Debug   bool
	storage *storage.Storage
	mu      sync.Map // Stores *sync.RWMutex for each gameId to protect writes and reads
	cache   sync.Map // Stores the latest []byte (JSON) for each gameId

	dirtyMu sync.Mutex
	dirty   map[string]bool
}

// NewGameStore creates a new GameStore.
func NewGameStore(dataDir string, s *storage.Storage) *GameStore {
	return &GameStore{
		DataDir: dataDir,
		storage: s,
		mu:      sync.Map{},
		cache:   sync.Map{},
		dirty:   make(map[string]bool),
	}
}

func gameFilename(gameID string) string {
	return filepath.Join("games", fmt.Sprintf("%s.json", url.PathEscape(gameID)))
}

func gameMetaFilename(gameID string) string {
	return filepath.Join("games", fmt.Sprintf("%s.meta.json", url.PathEscape(gameID)))
}

// SaveGame saves the game data atomically, without a version check.
// Use it for creation and for raft replay, where the version was
// already checked on the leader.
func (gs *GameStore) SaveGame(game *Game) error {
	m, _ := gs.mu.LoadOrStore(game.ID, &sync.RWMutex{})
	mutex := m.(*sync.RWMutex)

	mutex.Lock()
	defer mutex.Unlock()
	return gs.saveLocked(game)
}

func (gs *GameStore) saveLocked(game *Game) error {
	if err := gs.storage.SaveDataFile(gameFilename(game.ID), game); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}

	// Save Metadata Sidecar
	meta := metadataOf(game)
	if err := gs.storage.SaveDataFile(gameMetaFilename(game.ID), &meta); err != nil {
		log.Printf("Warning: Failed to save metadata sidecar for game %s: %v", game.ID, err)
		// Non-fatal, we can fall back to main file
	}

	if jsonBytes, err := json.Marshal(game); err == nil {
		gs.cache.Store(game.ID, jsonBytes)
	}

	gs.dirtyMu.Lock()
	delete(gs.dirty, game.ID)
	gs.dirtyMu.Unlock()

	return nil
}

// SaveGameCAS persists game only if the stored version still equals
// expectedVersion, then bumps the version. The returned snapshot
// carries the new version. A stale expectedVersion fails with
// ErrConflict and writes nothing.
func (gs *GameStore) SaveGameCAS(game *Game, expectedVersion uint64) (*Game, error) {
	m, _ := gs.mu.LoadOrStore(game.ID, &sync.RWMutex{})
	mutex := m.(*sync.RWMutex)

	mutex.Lock()
	defer mutex.Unlock()

	current, err := gs.loadLocked(game.ID)
	if err != nil && !os.IsNotExist(err) {
		return nil, &PersistenceError{Op: fmt.Sprintf("load game %s", game.ID), Err: err}
	}
	if current != nil && current.Version != expectedVersion {
		return nil, ErrConflict
	}

	out := game.clone()
	out.Version = expectedVersion + 1
	if err := gs.saveLocked(out); err != nil {
		return nil, &PersistenceError{Op: fmt.Sprintf("save game %s", game.ID), Err: err}
	}
	return out, nil
}

// SaveGameInMemory updates the in-memory cache and marks the game as dirty.
// If forceSync is true, it writes to disk immediately (behaving like SaveGame).
func (gs *GameStore) SaveGameInMemory(game *Game, forceSync bool) error {
	jsonBytes, err := json.Marshal(game)
	if err != nil {
		return err
	}
	gs.cache.Store(game.ID, jsonBytes)

	if forceSync {
		return gs.SaveGame(game)
	}

	gs.dirtyMu.Lock()
	gs.dirty[game.ID] = true
	gs.dirtyMu.Unlock()

	return nil
}

// Flush persists a specific game to disk if it is dirty.
func (gs *GameStore) Flush(gameID string) error {
	gs.dirtyMu.Lock()
	if !gs.dirty[gameID] {
		gs.dirtyMu.Unlock()
		return nil
	}
	gs.dirtyMu.Unlock()

	val, ok := gs.cache.Load(gameID)
	if !ok {
		gs.dirtyMu.Lock()
		delete(gs.dirty, gameID)
		gs.dirtyMu.Unlock()
		return fmt.Errorf("game %s marked dirty but not found in cache", gameID)
	}

	var g Game
	if err := json.Unmarshal(val.([]byte), &g); err != nil {
		return fmt.Errorf("failed to unmarshal game from cache for flush: %w", err)
	}

	// SaveGame will clear the dirty flag
	return gs.SaveGame(&g)
}

// FlushAll persists all dirty games to disk.
func (gs *GameStore) FlushAll() error {
	gs.dirtyMu.Lock()
	dirtyIds := make([]string, 0, len(gs.dirty))
	for id := range gs.dirty {
		dirtyIds = append(dirtyIds, id)
	}
	gs.dirtyMu.Unlock()

	for _, id := range dirtyIds {
		if err := gs.Flush(id); err != nil {
			return fmt.Errorf("failed to flush game %s: %w", id, err)
		}
	}
	return nil
}

// LoadGame loads the game data by game ID.
func (gs *GameStore) LoadGame(gameID string) (*Game, error) {
	if val, ok := gs.cache.Load(gameID); ok {
		var g Game
		if err := json.Unmarshal(val.([]byte), &g); err == nil {
			if gs.Debug {
				log.Printf("[CACHE] Hit for game %s", gameID)
			}
			g.normalize()
			return &g, nil
		}
		gs.cache.Delete(gameID)
	}
	if gs.Debug {
		log.Printf("[CACHE] Miss for game %s", gameID)
	}

	m, _ := gs.mu.LoadOrStore(gameID, &sync.RWMutex{})
	mutex := m.(*sync.RWMutex)

	mutex.RLock()
	defer mutex.RUnlock()
	return gs.loadLocked(gameID)
}

func (gs *GameStore) loadLocked(gameID string) (*Game, error) {
	var g Game
	if err := gs.storage.ReadDataFile(gameFilename(gameID), &g); err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	g.normalize()

	if jsonBytes, err := json.Marshal(&g); err == nil {
		gs.cache.Store(gameID, jsonBytes)
	}
	return &g, nil
}

// ListAllGameIDs returns the ids of every game on disk.
func (gs *GameStore) ListAllGameIDs() ([]string, error) {
	gamesDir := filepath.Join(gs.DataDir, "games")
	files, err := os.ReadDir(gamesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read games directory: %w", err)
	}
	var ids []string
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".meta.json") {
			continue
		}
		if id, err := url.PathUnescape(strings.TrimSuffix(name, ".json")); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// RestoreGame writes a game received in a raft snapshot, bypassing the
// version check.
func (gs *GameStore) RestoreGame(game *Game) error {
	game.normalize()
	return gs.SaveGame(game)
}

// LoadGameAsJSON is a helper for API handlers that just want bytes.
func (gs *GameStore) LoadGameAsJSON(gameID string) ([]byte, error) {
	g, err := gs.LoadGame(gameID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(g)
}

// GameSummary represents a summary of a game for listings.
type GameSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Date     string `json:"date,omitempty"`
	Opponent string `json:"opponent,omitempty"`
	TeamID   string `json:"teamId,omitempty"`
	Status   string `json:"status"`
	OwnerID  string `json:"ownerId"`
	Version  uint64 `json:"version"`
}

// GameMetadata contains only the fields needed for indexing.
type GameMetadata struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"ownerId"`
	Permissions Permissions `json:"permissions"`
	TeamID      string      `json:"teamId"`
	Name        string      `json:"name"`
	Opponent    string      `json:"opponent"`
	Location    string      `json:"location"`
	Date        string      `json:"date"`
	Status      string      `json:"status"`
	Version     uint64      `json:"version"`
}

func metadataOf(g *Game) GameMetadata {
	return GameMetadata{
		ID:          g.ID,
		OwnerID:     g.OwnerID,
		Permissions: g.Permissions,
		TeamID:      g.TeamID,
		Name:        g.Name,
		Opponent:    g.Opponent,
		Location:    g.Location,
		Date:        g.Date,
		Status:      g.Status,
		Version:     g.Version,
	}
}

// ListAllGameMetadata returns metadata for all games without loading
// full game records where a sidecar exists.
func (gs *GameStore) ListAllGameMetadata() iter.Seq2[GameMetadata, error] {
	return func(yield func(GameMetadata, error) bool) {
		gamesDir := filepath.Join(gs.DataDir, "games")
		files, err := os.ReadDir(gamesDir)
		if err != nil && !os.IsNotExist(err) {
			yield(GameMetadata{}, fmt.Errorf("could not read games directory: %w", err))
			return
		}

		hasMeta := make(map[string]bool)
		hasGame := make(map[string]bool)

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			name := file.Name()
			if strings.HasSuffix(name, ".meta.json") {
				if id, err := url.PathUnescape(strings.TrimSuffix(name, ".meta.json")); err == nil {
					hasMeta[id] = true
				}
			} else if strings.HasSuffix(name, ".json") {
				if id, err := url.PathUnescape(strings.TrimSuffix(name, ".json")); err == nil {
					hasGame[id] = true
				}
			}
		}

		processed := make(map[string]bool)

		// Fast path: metadata sidecars.
		for id := range hasMeta {
			processed[id] = true

			var meta GameMetadata
			if err := gs.storage.ReadDataFile(gameMetaFilename(id), &meta); err != nil {
				log.Printf("Registry Warning: failed to load metadata for %s: %v. Falling back to main file.", id, err)
				hasGame[id] = true
				processed[id] = false
				continue
			}

			if !yield(meta, nil) {
				return
			}
		}

		// Fallback path: full game files without a sidecar.
		for id := range hasGame {
			if processed[id] {
				continue
			}
			processed[id] = true

			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Registry Warning: failed to load game %s from disk: %v", id, err)
				continue
			}
			if !yield(metadataOf(g), nil) {
				return
			}
		}

		// Dirty cache: games created in memory but not yet flushed.
		gs.dirtyMu.Lock()
		dirtyIds := make([]string, 0, len(gs.dirty))
		for id := range gs.dirty {
			dirtyIds = append(dirtyIds, id)
		}
		gs.dirtyMu.Unlock()

		for _, id := range dirtyIds {
			if processed[id] {
				continue
			}
			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Error: Failed to load dirty game %s: %v", id, err)
				continue
			}
			if !yield(metadataOf(g), nil) {
				return
			}
		}
	}
}

// ListAllGames returns an iterator over all games found in the flat
// games directory.
func (gs *GameStore) ListAllGames() iter.Seq2[*Game, error] {
	return func(yield func(*Game, error) bool) {
		gamesDir := filepath.Join(gs.DataDir, "games")
		files, err := os.ReadDir(gamesDir)
		if err != nil && !os.IsNotExist(err) {
			yield(nil, fmt.Errorf("could not read games directory: %w", err))
			return
		}

		seen := make(map[string]bool)

		for _, file := range files {
			name := file.Name()
			if file.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".meta.json") {
				continue
			}
			gameID, err := url.PathUnescape(strings.TrimSuffix(name, ".json"))
			if err != nil {
				continue
			}
			seen[gameID] = true

			g, err := gs.LoadGame(gameID)
			if err != nil {
				log.Printf("Warning: could not load game '%s': %v", gameID, err)
				continue
			}
			if !yield(g, nil) {
				return
			}
		}

		gs.dirtyMu.Lock()
		dirtyIds := make([]string, 0, len(gs.dirty))
		for id := range gs.dirty {
			dirtyIds = append(dirtyIds, id)
		}
		gs.dirtyMu.Unlock()

		for _, id := range dirtyIds {
			if seen[id] {
				continue
			}
			g, err := gs.LoadGame(id)
			if err != nil {
				log.Printf("Error: Failed to load dirty game %s: %v", id, err)
				continue
			}
			if !yield(g, nil) {
				return
			}
		}
	}
}
