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
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"

	"github.com/c2FmZQ/storage"
	"github.com/c2FmZQ/storage/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
)

// UserIndex is the set of games and rosters a user can access.
type UserIndex struct {
	UserID       string                 `json:"userId"`
	GameAccess   map[string]AccessLevel `json:"gameAccess"`   // GameID -> AccessLevel
	RosterAccess map[string]AccessLevel `json:"rosterAccess"` // RosterID -> AccessLevel
	LastUpdated  int64                  `json:"lastUpdated"`
}

// RosterGamesIndex is the set of games scored for a roster.
type RosterGamesIndex struct {
	RosterID    string          `json:"rosterId"`
	GameIDs     map[string]bool `json:"gameIds"`
	LastUpdated int64           `json:"lastUpdated"`
}

// GameUsersIndex is the set of users with direct access to a game.
type GameUsersIndex struct {
	GameID      string          `json:"gameId"`
	UserIDs     map[string]bool `json:"userIds"`
	LastUpdated int64           `json:"lastUpdated"`
}

// RosterUsersIndex is the set of users holding a role on a roster.
type RosterUsersIndex struct {
	RosterID    string          `json:"rosterId"`
	UserIDs     map[string]bool `json:"userIds"`
	LastUpdated int64           `json:"lastUpdated"`
}

// indexTable is one LRU-cached, write-behind table of index records.
// Records are keyed by an identity string and stored under hashed
// filenames so user emails never appear on disk.
type indexTable[T any] struct {
	dataDir string
	prefix  string
	storage *storage.Storage
	mk      crypto.MasterKey

	key   func(*T) string
	blank func(id string) *T

	cache   *lru.Cache[string, *T]
	dirtyMu sync.Mutex
	dirty   map[string]bool
	mu      sync.Map // path -> *sync.Mutex
}

func newIndexTable[T any](size int, dataDir, prefix string, s *storage.Storage, mk crypto.MasterKey, key func(*T) string, blank func(string) *T) *indexTable[T] {
	t := &indexTable[T]{
		dataDir: dataDir,
		prefix:  prefix,
		storage: s,
		mk:      mk,
		key:     key,
		blank:   blank,
		dirty:   make(map[string]bool),
	}
	// Dirty entries pushed out of the cache are persisted on eviction.
	t.cache, _ = lru.NewWithEvict[string, *T](size, func(k string, v *T) {
		t.dirtyMu.Lock()
		isDirty := t.dirty[k]
		if isDirty {
			delete(t.dirty, k)
		}
		t.dirtyMu.Unlock()

		if isDirty {
			t.persist(v)
		}
	})
	return t
}

func (t *indexTable[T]) hashPath(id string) string {
	var hash string
	if t.mk != nil {
		hash = hex.EncodeToString(t.mk.Hash([]byte(id)))
	} else {
		h := sha256.Sum256([]byte(id))
		hash = hex.EncodeToString(h[:])
	}
	return filepath.Join(t.prefix, hash+".json")
}

func (t *indexTable[T]) fileLock(path string) *sync.Mutex {
	m, _ := t.mu.LoadOrStore(path, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// Get returns the record for id, loading from disk on a cache miss.
// A record that does not exist yet is returned as a fresh blank; it is
// not cached until Set is called.
func (t *indexTable[T]) Get(id string) (*T, error) {
	if v, ok := t.cache.Get(id); ok {
		return v, nil
	}
	path := t.hashPath(id)
	mutex := t.fileLock(path)
	mutex.Lock()
	v := new(T)
	err := t.storage.ReadDataFile(path, v)
	mutex.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return t.blank(id), nil
		}
		return nil, err
	}
	t.cache.Add(id, v)
	return v, nil
}

// Set caches the record and marks it dirty for write-behind.
func (t *indexTable[T]) Set(v *T) {
	id := t.key(v)
	t.cache.Add(id, v)
	t.dirtyMu.Lock()
	t.dirty[id] = true
	t.dirtyMu.Unlock()
}

func (t *indexTable[T]) persist(v *T) error {
	path := t.hashPath(t.key(v))
	mutex := t.fileLock(path)
	mutex.Lock()
	defer mutex.Unlock()
	return t.storage.SaveDataFile(path, v)
}

func (t *indexTable[T]) flushOne(id string) error {
	t.dirtyMu.Lock()
	if !t.dirty[id] {
		t.dirtyMu.Unlock()
		return nil
	}
	v, ok := t.cache.Get(id)
	if !ok {
		// Evicted entries were persisted by the eviction callback.
		t.dirtyMu.Unlock()
		return nil
	}
	delete(t.dirty, id)
	t.dirtyMu.Unlock()

	return t.persist(v)
}

// FlushAll persists every dirty record.
func (t *indexTable[T]) FlushAll() error {
	t.dirtyMu.Lock()
	ids := make([]string, 0, len(t.dirty))
	for id := range t.dirty {
		ids = append(ids, id)
	}
	t.dirtyMu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := t.flushOne(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *indexTable[T]) Invalidate(id string) {
	t.dirtyMu.Lock()
	delete(t.dirty, id)
	t.dirtyMu.Unlock()
	t.cache.Remove(id)
}

// IndexStore persists the registry's access and membership indices.
type IndexStore struct {
	users       *indexTable[UserIndex]
	rosterGames *indexTable[RosterGamesIndex]
	gameUsers   *indexTable[GameUsersIndex]
	rosterUsers *indexTable[RosterUsersIndex]
}

// NewIndexStore creates the registry index tables.
func NewIndexStore(dataDir string, s *storage.Storage, mk crypto.MasterKey) *IndexStore {
	return &IndexStore{
		users: newIndexTable(1000, dataDir, "users", s, mk,
			func(v *UserIndex) string { return v.UserID },
			func(id string) *UserIndex {
				return &UserIndex{
					UserID:       id,
					GameAccess:   make(map[string]AccessLevel),
					RosterAccess: make(map[string]AccessLevel),
				}
			}),
		rosterGames: newIndexTable(500, dataDir, "roster_games", s, mk,
			func(v *RosterGamesIndex) string { return v.RosterID },
			func(id string) *RosterGamesIndex {
				return &RosterGamesIndex{RosterID: id, GameIDs: make(map[string]bool)}
			}),
		gameUsers: newIndexTable(1000, dataDir, "game_users", s, mk,
			func(v *GameUsersIndex) string { return v.GameID },
			func(id string) *GameUsersIndex {
				return &GameUsersIndex{GameID: id, UserIDs: make(map[string]bool)}
			}),
		rosterUsers: newIndexTable(500, dataDir, "roster_users", s, mk,
			func(v *RosterUsersIndex) string { return v.RosterID },
			func(id string) *RosterUsersIndex {
				return &RosterUsersIndex{RosterID: id, UserIDs: make(map[string]bool)}
			}),
	}
}

func (s *IndexStore) GetUserIndex(userID string) (*UserIndex, error) {
	idx, err := s.users.Get(userID)
	if err != nil {
		return nil, err
	}
	if idx.GameAccess == nil {
		idx.GameAccess = make(map[string]AccessLevel)
	}
	if idx.RosterAccess == nil {
		idx.RosterAccess = make(map[string]AccessLevel)
	}
	return idx, nil
}

func (s *IndexStore) SetUserIndex(idx *UserIndex) { s.users.Set(idx) }

func (s *IndexStore) GetRosterGames(rosterID string) (*RosterGamesIndex, error) {
	idx, err := s.rosterGames.Get(rosterID)
	if err != nil {
		return nil, err
	}
	if idx.GameIDs == nil {
		idx.GameIDs = make(map[string]bool)
	}
	return idx, nil
}

func (s *IndexStore) SetRosterGames(idx *RosterGamesIndex) { s.rosterGames.Set(idx) }

func (s *IndexStore) GetGameUsers(gameID string) (*GameUsersIndex, error) {
	idx, err := s.gameUsers.Get(gameID)
	if err != nil {
		return nil, err
	}
	if idx.UserIDs == nil {
		idx.UserIDs = make(map[string]bool)
	}
	return idx, nil
}

func (s *IndexStore) SetGameUsers(idx *GameUsersIndex) { s.gameUsers.Set(idx) }

func (s *IndexStore) GetRosterUsers(rosterID string) (*RosterUsersIndex, error) {
	idx, err := s.rosterUsers.Get(rosterID)
	if err != nil {
		return nil, err
	}
	if idx.UserIDs == nil {
		idx.UserIDs = make(map[string]bool)
	}
	return idx, nil
}

func (s *IndexStore) SetRosterUsers(idx *RosterUsersIndex) { s.rosterUsers.Set(idx) }

// FlushAll persists every dirty index record across all tables.
func (s *IndexStore) FlushAll() error {
	var firstErr error
	for _, err := range []error{
		s.users.FlushAll(),
		s.rosterGames.FlushAll(),
		s.gameUsers.FlushAll(),
		s.rosterUsers.FlushAll(),
	} {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *IndexStore) InvalidateUser(id string)        { s.users.Invalidate(id) }
func (s *IndexStore) InvalidateRosterGames(id string) { s.rosterGames.Invalidate(id) }
func (s *IndexStore) InvalidateGameUsers(id string)   { s.gameUsers.Invalidate(id) }
func (s *IndexStore) InvalidateRosterUsers(id string) { s.rosterUsers.Invalidate(id) }
