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
	"log"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ttbt-io/dugout/backend/search"
)

// Registry manages the global index of games and rosters for all users.
// It allows efficient lookup of accessible entities without scanning all
// files. It relies on IndexStore for persistent, map-free indexing.
type Registry struct {
	gameStore   *GameStore
	rosterStore *RosterStore
	indexStore  *IndexStore

	mu sync.RWMutex

	// Metadata cache for sorting and filtering.
	gameMetadata   *lru.Cache[string, GameMetadata]
	rosterMetadata *lru.Cache[string, RosterMetadata]

	// Global counts.
	gameCount   int
	rosterCount int
	liveCount   int

	accessPolicy *UserAccessPolicy
}

// NewRegistry creates a new Registry.
// If forceRebuild is true, it scans all files to rebuild indices.
// Otherwise, it trusts the persisted indices and just counts files.
func NewRegistry(gs *GameStore, rs *RosterStore, is *IndexStore, forceRebuild bool) *Registry {
	gmCache, _ := lru.New[string, GameMetadata](5000)
	rmCache, _ := lru.New[string, RosterMetadata](2000)

	r := &Registry{
		gameStore:      gs,
		rosterStore:    rs,
		indexStore:     is,
		gameMetadata:   gmCache,
		rosterMetadata: rmCache,
	}

	if forceRebuild {
		r.Rebuild()
	} else {
		r.RefreshCounts()
		r.mu.RLock()
		log.Printf("Registry: Fast startup. Found %d games (%d live), %d rosters.", r.gameCount, r.liveCount, r.rosterCount)
		r.mu.RUnlock()
	}

	return r
}

// RefreshCounts updates the global game and roster counts from the
// metadata sidecars without loading full records.
func (r *Registry) RefreshCounts() {
	var games, live, rosters int
	for g, err := range r.gameStore.ListAllGameMetadata() {
		if err != nil {
			break
		}
		games++
		if g.Status == StatusInProgress {
			live++
		}
	}
	if ids, err := r.rosterStore.ListAllRosterIDs(); err == nil {
		rosters = len(ids)
	}

	r.mu.Lock()
	r.gameCount = games
	r.liveCount = live
	r.rosterCount = rosters
	r.mu.Unlock()
}

// UpdateAccessPolicy updates the cached access policy.
func (r *Registry) UpdateAccessPolicy(policy *UserAccessPolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessPolicy = policy
}

// GetAccessPolicy returns the current access policy.
func (r *Registry) GetAccessPolicy() *UserAccessPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accessPolicy
}

// Flush persists the registry indices.
func (r *Registry) Flush() error {
	return r.indexStore.FlushAll()
}

// Rebuild reconstructs the entire index by scanning the underlying stores.
func (r *Registry) Rebuild() {
	log.Println("Registry: Rebuild started...")

	var localGames, localLive, localRosters int

	for m, err := range r.rosterStore.ListAllRosterMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing rosters: %v", err)
			break
		}
		r.indexRoster(m.ID, m, true)
		localRosters++
	}

	for g, err := range r.gameStore.ListAllGameMetadata() {
		if err != nil {
			log.Printf("Registry: Error listing games: %v", err)
			break
		}
		r.indexGame(g.ID, g, true)
		localGames++
		if g.Status == StatusInProgress {
			localLive++
		}
	}

	r.mu.Lock()
	r.gameCount = localGames
	r.liveCount = localLive
	r.rosterCount = localRosters
	r.mu.Unlock()

	if err := r.indexStore.FlushAll(); err != nil {
		log.Printf("Registry: Warning: failed to flush indices: %v", err)
	}

	log.Printf("Registry: Rebuild complete. Indexed %d games (%d live), %d rosters.", localGames, localLive, localRosters)
}

// indexRoster processes a roster for indexing (Rebuild/Update).
func (r *Registry) indexRoster(rosterID string, m RosterMetadata, isRebuild bool) {
	r.rosterMetadata.Add(rosterID, m)

	newMembers := make(map[string]bool)
	newMembers[m.OwnerID] = true
	for _, u := range m.Roles.Admins {
		newMembers[u] = true
	}
	for _, u := range m.Roles.Scorekeepers {
		newMembers[u] = true
	}
	for _, u := range m.Roles.Spectators {
		newMembers[u] = true
	}

	oldIdx, _ := r.indexStore.GetRosterUsers(rosterID)
	isNew := len(oldIdx.UserIDs) == 0

	for u := range oldIdx.UserIDs {
		if !newMembers[u] {
			r.updateUserRosterAccess(u, rosterID, AccessNone)
		}
	}

	getLevel := func(u string) AccessLevel {
		if u == m.OwnerID {
			return AccessAdmin
		}
		for _, a := range m.Roles.Admins {
			if a == u {
				return AccessAdmin
			}
		}
		for _, a := range m.Roles.Scorekeepers {
			if a == u {
				return AccessWrite
			}
		}
		for _, a := range m.Roles.Spectators {
			if a == u {
				return AccessRead
			}
		}
		return AccessNone
	}

	for u := range newMembers {
		r.updateUserRosterAccess(u, rosterID, getLevel(u))
	}

	if !maps.Equal(oldIdx.UserIDs, newMembers) {
		oldIdx.UserIDs = newMembers
		oldIdx.LastUpdated = time.Now().UnixNano()
		r.indexStore.SetRosterUsers(oldIdx)
	}

	if isNew && !isRebuild {
		r.mu.Lock()
		r.rosterCount++
		r.mu.Unlock()
	}
}

// indexGame processes a game for indexing (Rebuild/Update).
func (r *Registry) indexGame(gameID string, g GameMetadata, isRebuild bool) {
	old, hadOld := r.gameMetadata.Peek(gameID)
	r.gameMetadata.Add(gameID, g)

	// Direct access only. Roster-derived access is resolved at query
	// time through the RosterGamesIndex.
	newUsers := make(map[string]bool)
	newUsers[g.OwnerID] = true
	for u := range g.Permissions.Users {
		newUsers[u] = true
	}
	if g.Permissions.Public != "" && g.Permissions.Public != "none" {
		newUsers[""] = true
	}

	oldIdx, _ := r.indexStore.GetGameUsers(gameID)
	isNew := len(oldIdx.UserIDs) == 0

	for u := range oldIdx.UserIDs {
		if !newUsers[u] {
			r.updateUserGameAccess(u, gameID, AccessNone)
		}
	}

	getLevel := func(u string) AccessLevel {
		if u == g.OwnerID {
			return AccessAdmin
		}
		if role, ok := g.Permissions.Users[u]; ok {
			switch role {
			case "admin":
				return AccessAdmin
			case "write":
				return AccessWrite
			case "read":
				return AccessRead
			}
		}
		switch g.Permissions.Public {
		case "write":
			return AccessWrite
		case "read":
			return AccessRead
		}
		return AccessNone
	}

	for u := range newUsers {
		r.updateUserGameAccess(u, gameID, getLevel(u))
	}

	if !maps.Equal(oldIdx.UserIDs, newUsers) {
		oldIdx.UserIDs = newUsers
		oldIdx.LastUpdated = time.Now().UnixNano()
		r.indexStore.SetGameUsers(oldIdx)
	}

	r.addRosterGame(g.TeamID, gameID)

	if !isRebuild {
		r.mu.Lock()
		if isNew {
			r.gameCount++
		}
		wasLive := hadOld && old.Status == StatusInProgress
		isLive := g.Status == StatusInProgress
		if isLive && !wasLive {
			r.liveCount++
		} else if wasLive && !isLive {
			r.liveCount--
		}
		r.mu.Unlock()
	}
}

func (r *Registry) updateUserRosterAccess(userID, rosterID string, level AccessLevel) {
	idx, _ := r.indexStore.GetUserIndex(userID)
	changed := false
	if level == AccessNone {
		if _, ok := idx.RosterAccess[rosterID]; ok {
			delete(idx.RosterAccess, rosterID)
			changed = true
		}
	} else {
		if idx.RosterAccess[rosterID] != level {
			idx.RosterAccess[rosterID] = level
			changed = true
		}
	}
	if changed {
		idx.LastUpdated = time.Now().UnixNano()
		r.indexStore.SetUserIndex(idx)
	}
}

func (r *Registry) updateUserGameAccess(userID, gameID string, level AccessLevel) {
	idx, _ := r.indexStore.GetUserIndex(userID)
	changed := false
	if level == AccessNone {
		if _, ok := idx.GameAccess[gameID]; ok {
			delete(idx.GameAccess, gameID)
			changed = true
		}
	} else {
		if idx.GameAccess[gameID] != level {
			idx.GameAccess[gameID] = level
			changed = true
		}
	}
	if changed {
		idx.LastUpdated = time.Now().UnixNano()
		r.indexStore.SetUserIndex(idx)
	}
}

func (r *Registry) addRosterGame(rosterID, gameID string) {
	if rosterID == "" {
		return
	}
	idx, _ := r.indexStore.GetRosterGames(rosterID)
	if !idx.GameIDs[gameID] {
		idx.GameIDs[gameID] = true
		idx.LastUpdated = time.Now().UnixNano()
		r.indexStore.SetRosterGames(idx)
	}
}

func (r *Registry) UpdateRoster(ro Roster) {
	r.indexRoster(ro.ID, RosterMetadata{
		ID: ro.ID, Name: ro.Name, OwnerID: ro.OwnerID, Roles: ro.Roles,
		UpdatedAt: ro.UpdatedAt,
	}, false)
}

func (r *Registry) UpdateGame(g Game) {
	r.indexGame(g.ID, metadataOf(&g), false)
}

func (r *Registry) getGameMeta(id string) (GameMetadata, bool) {
	if m, ok := r.gameMetadata.Get(id); ok {
		return m, true
	}
	g, err := r.gameStore.LoadGame(id)
	if err != nil {
		return GameMetadata{}, false
	}
	m := metadataOf(g)
	r.gameMetadata.Add(id, m)
	return m, true
}

func (r *Registry) getRosterMeta(id string) (RosterMetadata, bool) {
	if m, ok := r.rosterMetadata.Get(id); ok {
		return m, true
	}
	ro, err := r.rosterStore.LoadRoster(id)
	if err != nil {
		return RosterMetadata{}, false
	}
	m := RosterMetadata{ID: ro.ID, Name: ro.Name, OwnerID: ro.OwnerID, Roles: ro.Roles, UpdatedAt: ro.UpdatedAt}
	r.rosterMetadata.Add(id, m)
	return m, true
}

func (r *Registry) HasGameAccess(userID, gameID string) bool {
	return r.GetAccessLevel(userID, gameID) >= AccessRead
}

// GetAccessLevel calculates the effective access level for a user on a
// game using indexed metadata without loading the full game object.
func (r *Registry) GetAccessLevel(userID, gameID string) AccessLevel {
	idx, err := r.indexStore.GetUserIndex(userID)
	if err != nil {
		return AccessNone
	}

	level := AccessNone
	if l, ok := idx.GameAccess[gameID]; ok {
		level = l
	}

	// Roster role inheritance.
	for rosterID, rosterLevel := range idx.RosterAccess {
		if rosterLevel <= level {
			continue
		}
		rg, _ := r.indexStore.GetRosterGames(rosterID)
		if rg.GameIDs[gameID] {
			level = rosterLevel
		}
	}

	// Public access fallback.
	if level < AccessRead && userID != "" {
		if pIdx, err := r.indexStore.GetUserIndex(""); err == nil {
			if l, ok := pIdx.GameAccess[gameID]; ok && l > level {
				level = l
			}
		}
	}

	return level
}

func (r *Registry) HasRosterAccess(userID, rosterID string) bool {
	idx, err := r.indexStore.GetUserIndex(userID)
	if err != nil {
		return false
	}
	return idx.RosterAccess[rosterID] >= AccessRead
}

func (r *Registry) GetRosterAccessLevel(userID, rosterID string) AccessLevel {
	idx, err := r.indexStore.GetUserIndex(userID)
	if err != nil {
		return AccessNone
	}
	return idx.RosterAccess[rosterID]
}

func (r *Registry) GameExists(id string) bool {
	_, ok := r.getGameMeta(id)
	return ok
}

func (r *Registry) RosterExists(id string) bool {
	_, ok := r.getRosterMeta(id)
	return ok
}

func (r *Registry) CountOwnedGames(userID string) int {
	idx, err := r.indexStore.GetUserIndex(userID)
	if err != nil {
		return 0
	}
	count := 0
	for id, level := range idx.GameAccess {
		if level < AccessAdmin {
			continue
		}
		if m, ok := r.getGameMeta(id); ok && m.OwnerID == userID {
			count++
		}
	}
	return count
}

func (r *Registry) CountOwnedRosters(userID string) int {
	idx, err := r.indexStore.GetUserIndex(userID)
	if err != nil {
		return 0
	}
	count := 0
	for id, level := range idx.RosterAccess {
		if level < AccessAdmin {
			continue
		}
		if m, ok := r.getRosterMeta(id); ok && m.OwnerID == userID {
			count++
		}
	}
	return count
}

func (r *Registry) CountTotalGames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gameCount
}

func (r *Registry) CountLiveGames() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.liveCount
}

func (r *Registry) CountTotalRosters() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rosterCount
}

// ListGames returns the ids of every game the user can see, filtered
// and sorted. Sort keys are date, name and location.
func (r *Registry) ListGames(userID, sortBy, order, query string) []string {
	if sortBy == "" {
		sortBy = "date"
	}
	if order == "" {
		if sortBy == "date" {
			order = "desc"
		} else {
			order = "asc"
		}
	}

	q := search.Parse(query)
	for i, t := range q.FreeText {
		q.FreeText[i] = strings.ToLower(t)
	}
	for i, f := range q.Filters {
		if f.Key != "date" {
			q.Filters[i].Value = strings.ToLower(f.Value)
		}
	}

	idx, err := r.indexStore.GetUserIndex(userID)
	if err != nil {
		return []string{}
	}

	var ids []string
	seen := make(map[string]bool)

	collect := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		meta, ok := r.getGameMeta(id)
		if !ok || !matchesGame(meta, q) {
			return
		}
		ids = append(ids, id)
	}

	for id := range idx.GameAccess {
		collect(id)
	}

	// Roster games.
	for rosterID := range idx.RosterAccess {
		rg, _ := r.indexStore.GetRosterGames(rosterID)
		for id := range rg.GameIDs {
			collect(id)
		}
	}

	// Public games.
	if userID != "" {
		if pIdx, err := r.indexStore.GetUserIndex(""); err == nil {
			for id := range pIdx.GameAccess {
				collect(id)
			}
		}
	}

	sortKey := func(m GameMetadata) string {
		switch sortBy {
		case "name":
			return m.Name
		case "location":
			return m.Location
		default:
			return m.Date
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		id1, id2 := ids[i], ids[j]
		m1, ok1 := r.getGameMeta(id1)
		m2, ok2 := r.getGameMeta(id2)
		var less bool
		if !ok1 || !ok2 {
			less = id1 < id2
		} else if k1, k2 := sortKey(m1), sortKey(m2); k1 != k2 {
			less = k1 < k2
		} else {
			less = id1 < id2
		}
		if order == "desc" {
			return !less
		}
		return less
	})
	return ids
}

// ListRosters returns the ids of every roster the user can see,
// filtered and sorted. Sort keys are name and updated.
func (r *Registry) ListRosters(userID, sortBy, order, query string) []string {
	if sortBy == "" {
		sortBy = "name"
	}
	if order == "" {
		order = "asc"
	}

	q := search.Parse(query)
	for i, t := range q.FreeText {
		q.FreeText[i] = strings.ToLower(t)
	}
	for i, f := range q.Filters {
		q.Filters[i].Value = strings.ToLower(f.Value)
	}

	idx, err := r.indexStore.GetUserIndex(userID)
	if err != nil {
		return []string{}
	}

	var ids []string
	for id := range idx.RosterAccess {
		meta, ok := r.getRosterMeta(id)
		if !ok || !matchesRoster(meta, q) {
			continue
		}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		id1, id2 := ids[i], ids[j]
		m1, ok1 := r.getRosterMeta(id1)
		m2, ok2 := r.getRosterMeta(id2)
		var less bool
		if !ok1 || !ok2 {
			less = id1 < id2
		} else if sortBy == "updated" && m1.UpdatedAt != m2.UpdatedAt {
			less = m1.UpdatedAt < m2.UpdatedAt
		} else if m1.Name != m2.Name {
			less = m1.Name < m2.Name
		} else {
			less = id1 < id2
		}
		if order == "desc" {
			return !less
		}
		return less
	})
	return ids
}

// --- Search Helpers ---

func containsLower(s, substrLower string) bool {
	return strings.Contains(strings.ToLower(s), substrLower)
}

func matchesGame(m GameMetadata, q search.Query) bool {
	for _, token := range q.FreeText {
		match := containsLower(m.Name, token) ||
			containsLower(m.Opponent, token) ||
			containsLower(m.Location, token)
		if !match {
			return false
		}
	}
	for _, f := range q.Filters {
		switch f.Key {
		case "name":
			if !containsLower(m.Name, f.Value) {
				return false
			}
		case "opponent":
			if !containsLower(m.Opponent, f.Value) {
				return false
			}
		case "location":
			if !containsLower(m.Location, f.Value) {
				return false
			}
		case "status":
			if !strings.EqualFold(m.Status, f.Value) {
				return false
			}
		case "date":
			if !checkDateFilter(m.Date, f) {
				return false
			}
		}
	}
	return true
}

func matchesRoster(m RosterMetadata, q search.Query) bool {
	for _, token := range q.FreeText {
		if !containsLower(m.Name, token) {
			return false
		}
	}
	for _, f := range q.Filters {
		switch f.Key {
		case "name":
			if !containsLower(m.Name, f.Value) {
				return false
			}
		}
	}
	return true
}

func checkDateFilter(dateVal string, f search.Filter) bool {
	switch f.Operator {
	case search.OpEqual:
		return strings.HasPrefix(dateVal, f.Value)
	case search.OpGreater:
		return dateVal > f.Value
	case search.OpGreaterOrEqual:
		return dateVal >= f.Value
	case search.OpLess:
		return dateVal < f.Value
	case search.OpLessOrEqual:
		return dateVal <= f.Value
	case search.OpRange:
		maxVal := f.MaxValue + "~"
		return dateVal >= f.Value && dateVal <= maxVal
	}
	return true
}
