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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/c2FmZQ/storage"
	"github.com/hashicorp/raft"
)

func newTestFSM(t *testing.T) (*FSM, string) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "fsm_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	s := storage.New(tmpDir, nil)
	gs := NewGameStore(tmpDir, s)
	as := NewAtBatStore(tmpDir, s)
	rs := NewRosterStore(tmpDir, s)
	is := NewIndexStore(tmpDir, s, nil)
	r := NewRegistry(gs, rs, is, false)
	return NewFSM(gs, as, rs, r, nil, s), tmpDir
}

// applyJSON encodes the command the way a non-gob cluster would and
// feeds it through Apply.
func applyJSON(t *testing.T, f *FSM, cmd RaftCommand, index uint64) interface{} {
	t.Helper()
	data, err := json.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}
	return f.Apply(&raft.Log{Index: index, Data: data})
}

func saveGameCmd(t *testing.T, g *Game, force bool) RaftCommand {
	t.Helper()
	data, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	raw := json.RawMessage(data)
	return RaftCommand{Type: CmdSaveGame, ID: g.ID, GameData: &raw, Force: force}
}

func TestFSM_ApplySaveGame(t *testing.T) {
	f, _ := newTestFSM(t)
	gs, _, _ := f.GetStores()

	g := &Game{ID: testGameID, OwnerID: "owner@example.com", Status: StatusSetup, Version: 1}
	if res := applyJSON(t, f, saveGameCmd(t, g, false), 1); res != nil {
		t.Fatalf("apply failed: %v", res)
	}

	stored, err := gs.LoadGame(testGameID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Version != 1 || stored.LastRaftIndex != 1 {
		t.Errorf("stored version/index = %d/%d", stored.Version, stored.LastRaftIndex)
	}
	if f.LastAppliedIndex() != 1 {
		t.Errorf("LastAppliedIndex = %d", f.LastAppliedIndex())
	}
	if !f.r.GameExists(testGameID) {
		t.Error("game not indexed in registry")
	}

	t.Run("StaleVersionRejected", func(t *testing.T) {
		res := applyJSON(t, f, saveGameCmd(t, g, false), 2)
		err, ok := res.(error)
		if !ok || !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", res)
		}
	})

	t.Run("ForceBypassesVersionCheck", func(t *testing.T) {
		if res := applyJSON(t, f, saveGameCmd(t, g, true), 3); res != nil {
			t.Fatalf("forced apply failed: %v", res)
		}
		stored, _ := gs.LoadGame(testGameID)
		if stored.LastRaftIndex != 3 {
			t.Errorf("LastRaftIndex = %d, want 3", stored.LastRaftIndex)
		}
	})

	t.Run("ReplayIsNoOp", func(t *testing.T) {
		g2 := *g
		g2.Version = 9
		g2.Name = "should not land"
		if res := applyJSON(t, f, saveGameCmd(t, &g2, false), 2); res != nil {
			t.Fatalf("replay returned %v", res)
		}
		stored, _ := gs.LoadGame(testGameID)
		if stored.Version == 9 || stored.Name == "should not land" {
			t.Error("replayed entry mutated state")
		}
	})
}

func TestFSM_ApplyRecordAtBat(t *testing.T) {
	f, _ := newTestFSM(t)
	gs, as, _ := f.GetStores()
	started := startedGame(t, gs)

	req := &RecordAtBatRequest{
		GameID:    testGameID,
		BatterID:  "p1",
		Result:    ResultSingle,
		AtBatID:   "44444444-4444-4444-8444-444444444444",
		Timestamp: 1700000000,
	}
	res := applyJSON(t, f, RaftCommand{Type: CmdRecordAtBat, AtBat: req}, 7)

	result, ok := res.(*AtBatResult)
	if !ok {
		t.Fatalf("Apply returned %T: %v", res, res)
	}
	if result.AtBat.ID != req.AtBatID || result.AtBat.Seq != 1 {
		t.Errorf("at-bat = %+v", result.AtBat)
	}
	if result.Game.Version != started.Version+1 || result.Game.LastRaftIndex != 7 {
		t.Errorf("game version/index = %d/%d", result.Game.Version, result.Game.LastRaftIndex)
	}

	t.Run("ReplaySameIndex", func(t *testing.T) {
		if res := applyJSON(t, f, RaftCommand{Type: CmdRecordAtBat, AtBat: req}, 7); res != nil {
			t.Fatalf("replay returned %v", res)
		}
		if n, _ := as.Count(testGameID); n != 1 {
			t.Errorf("at-bat count = %d after replay, want 1", n)
		}
		stored, _ := gs.LoadGame(testGameID)
		if stored.Version != started.Version+1 {
			t.Errorf("replay advanced version to %d", stored.Version)
		}
	})
}

func TestFSM_ApplyNodeMeta(t *testing.T) {
	f, _ := newTestFSM(t)

	meta := &NodeMeta{NodeID: "node-1", HttpAddr: "https://node1:8443", PubKey: "cGs="}
	if res := applyJSON(t, f, RaftCommand{Type: CmdNodeMeta, NodeMeta: meta}, 1); res != nil {
		t.Fatalf("node meta apply failed: %v", res)
	}
	if f.GetNodeCount() != 1 {
		t.Errorf("node count = %d", f.GetNodeCount())
	}
	if addr := f.GetNodeAddr("node-1"); addr != "https://node1:8443" {
		t.Errorf("addr = %q", addr)
	}
	if pk := f.GetNodePubKey("node-1"); pk != "cGs=" {
		t.Errorf("pubkey = %q", pk)
	}

	if res := applyJSON(t, f, RaftCommand{Type: CmdNodeLeft, NodeMeta: meta}, 2); res != nil {
		t.Fatalf("node left apply failed: %v", res)
	}
	if f.GetNodeCount() != 0 {
		t.Errorf("node count after leave = %d", f.GetNodeCount())
	}
}

func TestFSM_ApplyUpdateAccessPolicy(t *testing.T) {
	f, tmpDir := newTestFSM(t)

	policy := &UserAccessPolicy{
		DefaultPolicy: "deny",
		Admins:        []string{"admin@example.com"},
	}
	if res := applyJSON(t, f, RaftCommand{Type: CmdUpdateAccessPolicy, PolicyData: policy}, 1); res != nil {
		t.Fatalf("policy apply failed: %v", res)
	}

	got := f.r.GetAccessPolicy()
	if got == nil || got.DefaultPolicy != "deny" {
		t.Errorf("registry policy = %+v", got)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "sys_access_policy")); err != nil {
		t.Errorf("policy file not persisted: %v", err)
	}
}

func TestFSM_ApplyMetricsUpdate(t *testing.T) {
	f, _ := newTestFSM(t)

	payload := &MetricsPayload{
		Timestamp: 1700000000,
		Nodes:     []NodeMetric{{NodeID: "node-1", RPS: 2.5, ActiveWS: 3}},
		Cluster:   &ClusterMetric{NodeCount: 3, TotalGames: 10, LiveGames: 2},
	}
	if res := applyJSON(t, f, RaftCommand{Type: CmdMetricsUpdate, MetricsPayload: payload}, 1); res != nil {
		t.Fatalf("metrics apply failed: %v", res)
	}

	out := f.GetMetricsJSON()
	if out == nil {
		t.Fatal("GetMetricsJSON returned nil")
	}
	if f.GetLastMetricsTimestamp() != 1700000000 {
		t.Errorf("LastUpdate = %d", f.GetLastMetricsTimestamp())
	}
}

func TestFSM_ApplyEmptyAndUnknown(t *testing.T) {
	f, _ := newTestFSM(t)

	if res := f.Apply(&raft.Log{Index: 1}); res != nil {
		t.Errorf("empty log entry returned %v", res)
	}
	res := applyJSON(t, f, RaftCommand{Type: "BOGUS"}, 2)
	if _, ok := res.(error); !ok {
		t.Errorf("unknown command returned %v", res)
	}
}
