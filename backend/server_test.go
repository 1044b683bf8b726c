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
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "server_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	_, handler := NewServerHandler(Options{
		DataDir:        tmpDir,
		UseMockAuth:    true,
		BootstrapAdmin: "admin@example.com",
	})
	return handler
}

// doRequest issues a request against the handler with the mock auth
// cookie set for user. A nil body sends an empty request.
func doRequest(t *testing.T, handler http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.AddCookie(&http.Cookie{Name: "mock_auth_user", Value: user})
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, w.Body.String())
	}
	return out
}

func TestServerGameFlow(t *testing.T) {
	handler := newTestHandler(t)
	scorer := "scorer@example.com"

	var created Game

	t.Run("CreateGame", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/games", scorer, map[string]any{
			"id":       testGameID,
			"name":     "Season Opener",
			"opponent": "Tigers",
			"date":     "2025-04-01",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		created = decodeBody[Game](t, w)
		if created.Status != StatusSetup || created.OwnerID != scorer || created.Version != 1 {
			t.Errorf("created = %+v", created)
		}
	})

	t.Run("CreateDuplicateConflicts", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/games", scorer, map[string]any{"id": testGameID})
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("StartGame", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/games/start", scorer, map[string]any{
			"gameId": testGameID,
			"lineup": testLineup("p1", "p2", "p3"),
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		g := decodeBody[Game](t, w)
		if g.Status != StatusInProgress || g.Inning != 1 || g.Half != HalfTop {
			t.Errorf("started = %+v", g)
		}
	})

	t.Run("StartTwiceRejected", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/games/start", scorer, map[string]any{
			"gameId": testGameID,
			"lineup": testLineup("p1", "p2", "p3"),
		})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		se := decodeBody[StateError](t, w)
		if se.Code != CodeWrongGameStatus {
			t.Errorf("code = %q", se.Code)
		}
	})

	t.Run("RecordAtBat", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/at-bat", scorer, RecordAtBatRequest{
			GameID:   testGameID,
			BatterID: "p1",
			Result:   ResultSingle,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		res := decodeBody[AtBatResult](t, w)
		if res.AtBat.Seq != 1 || res.Game.BatterIndex != 1 {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("WrongBatterRejected", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/at-bat", scorer, RecordAtBatRequest{
			GameID:   testGameID,
			BatterID: "p1",
			Result:   ResultSingle,
		})
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		se := decodeBody[StateError](t, w)
		if se.Code != CodeBatterMismatch {
			t.Errorf("code = %q", se.Code)
		}
	})

	t.Run("StaleVersionConflicts", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/at-bat", scorer, RecordAtBatRequest{
			GameID:          testGameID,
			BatterID:        "p2",
			Result:          ResultWalk,
			ExpectedVersion: 1,
		})
		if w.Code != http.StatusConflict {
			t.Errorf("status = %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("LoadGame", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/load/"+testGameID, scorer, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		g := decodeBody[Game](t, w)
		if g.ID != testGameID || g.Bases.First != "p1" {
			t.Errorf("loaded = %+v", g)
		}

		etag := w.Header().Get("ETag")
		if etag == "" {
			t.Fatal("missing ETag")
		}
		req := httptest.NewRequest("GET", "/api/load/"+testGameID, nil)
		req.AddCookie(&http.Cookie{Name: "mock_auth_user", Value: scorer})
		req.Header.Set("If-None-Match", etag)
		w2 := httptest.NewRecorder()
		handler.ServeHTTP(w2, req)
		if w2.Code != http.StatusNotModified {
			t.Errorf("conditional load status = %d", w2.Code)
		}
	})

	t.Run("AtBatLog", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/at-bats/"+testGameID, scorer, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		atBats := decodeBody[[]*AtBat](t, w)
		if len(atBats) != 1 || atBats[0].BatterID != "p1" {
			t.Errorf("log = %v", atBats)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/stats/"+testGameID, scorer, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		resp := decodeBody[struct {
			GameID  string        `json:"gameId"`
			Status  string        `json:"status"`
			Players []PlayerStats `json:"players"`
		}](t, w)
		if resp.GameID != testGameID || resp.Status != StatusInProgress {
			t.Errorf("stats header = %+v", resp)
		}
		if len(resp.Players) != 1 || resp.Players[0].Hits != 1 {
			t.Errorf("players = %+v", resp.Players)
		}
	})

	t.Run("ListGames", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/list-games?q=opponent:Tigers", scorer, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		resp := decodeBody[struct {
			Data []GameSummary `json:"data"`
			Meta struct {
				Total  int `json:"total"`
				Offset int `json:"offset"`
				Limit  int `json:"limit"`
			} `json:"meta"`
		}](t, w)
		if resp.Meta.Total != 1 || resp.Meta.Limit != 50 {
			t.Errorf("meta = %+v", resp.Meta)
		}
		if len(resp.Data) != 1 || resp.Data[0].ID != testGameID {
			t.Errorf("data = %+v", resp.Data)
		}
	})

	t.Run("CompleteGame", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/games/complete", scorer, map[string]any{
			"gameId": testGameID,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		g := decodeBody[Game](t, w)
		if g.Status != StatusCompleted {
			t.Errorf("status = %q", g.Status)
		}
	})
}

func TestServerGameAccess(t *testing.T) {
	handler := newTestHandler(t)
	owner := "owner@example.com"

	w := doRequest(t, handler, "POST", "/api/games", owner, map[string]any{
		"id":   testGameID,
		"name": "Private Game",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	t.Run("AnonymousCreateRejected", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/games", "", map[string]any{})
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("StrangerCannotLoad", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/load/"+testGameID, "stranger@example.com", nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("StrangerCannotRecord", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/at-bat", "stranger@example.com", RecordAtBatRequest{
			GameID:   testGameID,
			BatterID: "p1",
			Result:   ResultSingle,
		})
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("PublicGameLoadsAnonymously", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/save", owner, map[string]any{
			"id":          testGameID,
			"name":        "Private Game",
			"permissions": map[string]any{"public": "read"},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("save status = %d: %s", w.Code, w.Body.String())
		}

		w = doRequest(t, handler, "GET", "/api/load/"+testGameID, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("anonymous load status = %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("MissingGame404", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/load/99999999-9999-4999-8999-999999999999", owner, nil)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("BadGameID400", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/load/not-a-uuid", owner, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestServerRosterFlow(t *testing.T) {
	handler := newTestHandler(t)
	coach := "coach@example.com"
	rosterID := "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"

	t.Run("SaveRoster", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/save-roster", coach, map[string]any{
			"id":   rosterID,
			"name": "Wildcats",
			"players": []map[string]any{
				{"id": "p1", "name": "Alice"},
				{"id": "p2", "name": "Bob"},
			},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		ro := decodeBody[Roster](t, w)
		if ro.OwnerID != coach || ro.Name != "Wildcats" {
			t.Errorf("saved = %+v", ro)
		}
	})

	t.Run("LoadRoster", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/load-roster/"+rosterID, coach, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		ro := decodeBody[Roster](t, w)
		if len(ro.Players) != 2 {
			t.Errorf("players = %v", ro.Players)
		}
	})

	t.Run("StrangerCannotLoadRoster", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/load-roster/"+rosterID, "stranger@example.com", nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("UpdateMembers", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/roster/members", coach, map[string]any{
			"rosterId": rosterID,
			"roles": RosterRoles{
				Scorekeepers: []string{"scorer@example.com"},
			},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}

		// The new scorekeeper can now read the roster.
		w = doRequest(t, handler, "GET", "/api/load-roster/"+rosterID, "scorer@example.com", nil)
		if w.Code != http.StatusOK {
			t.Errorf("scorekeeper load status = %d", w.Code)
		}
	})

	t.Run("NonAdminCannotUpdateMembers", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/roster/members", "scorer@example.com", map[string]any{
			"rosterId": rosterID,
			"roles":    RosterRoles{},
		})
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("ListRosters", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/list-rosters", coach, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		resp := decodeBody[struct {
			Data []Roster `json:"data"`
			Meta struct {
				Total int `json:"total"`
			} `json:"meta"`
		}](t, w)
		if resp.Meta.Total != 1 || len(resp.Data) != 1 || resp.Data[0].ID != rosterID {
			t.Errorf("list = %+v", resp)
		}
	})

	t.Run("StartGameWithRosterLineup", func(t *testing.T) {
		lineupID := "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
		w := doRequest(t, handler, "POST", "/api/save-roster", coach, map[string]any{
			"id":   rosterID,
			"name": "Wildcats",
			"players": []map[string]any{
				{"id": "p1", "name": "Alice"},
				{"id": "p2", "name": "Bob"},
			},
			"lineups": []map[string]any{{
				"id": lineupID,
				"entries": []map[string]any{
					{"battingOrder": 1, "playerId": "p1", "isStarter": true},
					{"battingOrder": 2, "playerId": "p2", "isStarter": true},
				},
			}},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("save roster status = %d: %s", w.Code, w.Body.String())
		}

		gameID := "55555555-5555-4555-8555-555555555555"
		w = doRequest(t, handler, "POST", "/api/games", coach, map[string]any{
			"id":     gameID,
			"name":   "Roster Lineup Game",
			"date":   "2025-04-02",
			"teamId": rosterID,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
		}

		// A lineup id the roster does not carry is rejected.
		w = doRequest(t, handler, "POST", "/api/games/start", coach, map[string]any{
			"gameId":   gameID,
			"lineupId": "cccccccc-cccc-4ccc-8ccc-cccccccccccc",
		})
		if w.Code != http.StatusNotFound {
			t.Errorf("unknown lineup status = %d: %s", w.Code, w.Body.String())
		}

		w = doRequest(t, handler, "POST", "/api/games/start", coach, map[string]any{
			"gameId":   gameID,
			"lineupId": lineupID,
		})
		if w.Code != http.StatusOK {
			t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
		}
		g := decodeBody[Game](t, w)
		if g.Status != StatusInProgress || g.Lineup == nil || g.Lineup.ID != lineupID {
			t.Errorf("started = %+v", g)
		}
		if got := g.CurrentBatter(); got != "p1" {
			t.Errorf("first batter = %q, want p1", got)
		}
	})
}

func TestServerMe(t *testing.T) {
	handler := newTestHandler(t)

	w := doRequest(t, handler, "GET", "/api/me", "user@example.com", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decodeBody[struct {
		ID      string         `json:"id"`
		Allowed bool           `json:"allowed"`
		Quotas  map[string]int `json:"quotas"`
	}](t, w)
	if resp.ID != "user@example.com" || !resp.Allowed {
		t.Errorf("me = %+v", resp)
	}
	if _, ok := resp.Quotas["maxGames"]; !ok {
		t.Errorf("quotas = %v", resp.Quotas)
	}

	w = doRequest(t, handler, "GET", "/api/me", "", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("anonymous status = %d", w.Code)
	}
}

func TestServerAdminPolicy(t *testing.T) {
	handler := newTestHandler(t)
	admin := "admin@example.com"

	t.Run("NonAdminForbidden", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/admin/policy", "user@example.com", nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("DefaultPolicy", func(t *testing.T) {
		w := doRequest(t, handler, "GET", "/api/admin/policy", admin, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		policy := decodeBody[UserAccessPolicy](t, w)
		if policy.DefaultPolicy != "allow" {
			t.Errorf("policy = %+v", policy)
		}
	})

	t.Run("UpdatePolicy", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/admin/policy", admin, UserAccessPolicy{
			DefaultPolicy:      "deny",
			DefaultDenyMessage: "closed",
			Users: map[string]UserOverride{
				"Friend@Example.com": {Access: "allow"},
			},
		})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}

		// Denied users now bounce off authenticated endpoints.
		w = doRequest(t, handler, "GET", "/api/list-games", "other@example.com", nil)
		if w.Code != http.StatusForbidden {
			t.Errorf("denied user status = %d", w.Code)
		}
		// The override is matched case-insensitively.
		w = doRequest(t, handler, "GET", "/api/list-games", "friend@example.com", nil)
		if w.Code != http.StatusOK {
			t.Errorf("allowed user status = %d", w.Code)
		}
	})

	t.Run("InvalidDefaultRejected", func(t *testing.T) {
		w := doRequest(t, handler, "POST", "/api/admin/policy", admin, UserAccessPolicy{
			DefaultPolicy: "maybe",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestServerSecurityHeaders(t *testing.T) {
	handler := newTestHandler(t)

	w := doRequest(t, handler, "GET", "/api/me", "user@example.com", nil)
	for header, want := range map[string]string{
		"X-Frame-Options":        "DENY",
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, no-cache, no-transform",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("missing Content-Security-Policy")
	}
}
