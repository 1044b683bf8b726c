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
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c2FmZQ/storage"
	"github.com/hashicorp/raft"
)

// FSM implements the raft.FSM interface. Every command mutates state
// through the same engine code the standalone path uses, so all nodes
// converge on identical game documents.
type FSM struct {
	gs          *GameStore
	as          *AtBatStore
	rs          *RosterStore
	proc        *AtBatProcessor
	r           *Registry
	hm          *HubManager
	storage     *storage.Storage
	initialized atomic.Bool
	rm          *RaftManager

	metricsMu sync.RWMutex
	metrics   *MetricsStore

	nodeMap          sync.Map // map[string]*NodeMeta
	lastAppliedIndex atomic.Uint64
}

// NewFSM creates a new FSM.
func NewFSM(gs *GameStore, as *AtBatStore, rs *RosterStore, r *Registry, hm *HubManager, s *storage.Storage) *FSM {
	f := &FSM{
		gs:      gs,
		as:      as,
		rs:      rs,
		proc:    NewAtBatProcessor(gs, as),
		r:       r,
		hm:      hm,
		storage: s,
		metrics: NewMetricsStore(),
	}
	if s != nil {
		if _, err := os.Stat(filepath.Join(s.Dir(), "initialized")); err == nil {
			f.initialized.Store(true)
		}
		f.loadNodes()
	}
	return f
}

// LastAppliedIndex returns the index of the last applied log entry.
func (f *FSM) LastAppliedIndex() uint64 {
	return f.lastAppliedIndex.Load()
}

// Processor returns the at-bat processor shared with the FSM, for the
// standalone (no raft) path.
func (f *FSM) Processor() *AtBatProcessor {
	return f.proc
}

func (f *FSM) GetMetricsJSON() map[string]interface{} {
	f.metricsMu.RLock()
	defer f.metricsMu.RUnlock()
	return f.metrics.ToJSON()
}

func (f *FSM) GetTotalGames() int {
	return f.r.CountTotalGames()
}

func (f *FSM) GetLiveGames() int {
	return f.r.CountLiveGames()
}

func (f *FSM) GetActiveWSCount() int {
	if f.hm == nil {
		return 0
	}
	return f.hm.GetTotalConnectionCount()
}

func (f *FSM) GetLastMetricsTimestamp() int64 {
	f.metricsMu.RLock()
	defer f.metricsMu.RUnlock()

	ts := f.metrics.LastUpdate

	// A very recent update may be this node's own first report. Look
	// for the previous point in the ring buffer to measure the gap.
	if ts > 0 && time.Since(time.Unix(ts, 0)) < 15*time.Second {
		if f.metrics.ClusterMetrics != nil {
			if series, ok := f.metrics.ClusterMetrics["nodeCount"]; ok {
				if buf, ok := series.Buffers["1m"]; ok {
					points := buf.GetPoints()
					alignedLast := (ts / 60) * 60
					for i := len(points) - 1; i >= 0; i-- {
						if points[i].Timestamp < alignedLast {
							return points[i].Timestamp
						}
					}
				}
			}
		}
	}
	return ts
}

func (f *FSM) loadNodes() {
	if f.storage == nil {
		return
	}
	var nodes map[string]*NodeMeta
	if err := f.storage.ReadDataFile("nodes.json", &nodes); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("FSM Error: failed to read nodes.json: %v", err)
		}
		return
	}
	for k, v := range nodes {
		f.nodeMap.Store(k, v)
	}
}

func (f *FSM) saveNodes() {
	if f.storage == nil {
		return
	}
	nodes := make(map[string]*NodeMeta)
	f.nodeMap.Range(func(k, v interface{}) bool {
		nodes[k.(string)] = v.(*NodeMeta)
		return true
	})
	if err := f.storage.SaveDataFile("nodes.json", nodes); err != nil {
		log.Printf("FSM Error: failed to save nodes.json: %v", err)
	}
}

// IsInitialized returns true if the node has joined a cluster
// (processed a NodeMeta from another node).
func (f *FSM) IsInitialized() bool {
	return f.initialized.Load()
}

func (f *FSM) setInitialized() {
	if f.initialized.Swap(true) {
		return
	}
	if f.storage != nil {
		if err := f.storage.SaveDataFile("initialized", "true"); err != nil {
			log.Printf("FSM Error: failed to save initialized state: %v", err)
		}
	}
}

// Apply applies a Raft log entry.
func (f *FSM) Apply(l *raft.Log) interface{} {
	if len(l.Data) == 0 {
		return nil
	}
	var cmd RaftCommand
	var err error

	if f.rm != nil && f.rm.UseGob {
		dec := gob.NewDecoder(bytes.NewReader(l.Data))
		err = dec.Decode(&cmd)
	} else {
		err = json.Unmarshal(l.Data, &cmd)
	}

	if err != nil {
		log.Printf("FSM Apply Error: failed to decode command (gob=%v): %v", f.rm != nil && f.rm.UseGob, err)
		return err
	}

	res := f.applyCommand(cmd, l.Index)
	f.lastAppliedIndex.Store(l.Index)
	return res
}

func (f *FSM) GetHubManager() *HubManager {
	return f.hm
}

func (f *FSM) GetHub(id string) *Hub {
	return f.hm.GetHub(id, f.gs, f.as, f.r)
}

func (f *FSM) GetStores() (*GameStore, *AtBatStore, *RosterStore) {
	return f.gs, f.as, f.rs
}

func (f *FSM) GetNodeCount() int {
	count := 0
	f.nodeMap.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (f *FSM) GetAllNodes() map[string]string {
	nodes := make(map[string]string)
	f.nodeMap.Range(func(key, value interface{}) bool {
		if meta, ok := value.(*NodeMeta); ok {
			nodes[key.(string)] = meta.HttpAddr
		}
		return true
	})
	return nodes
}

func (f *FSM) GetNodeAddr(nodeID string) string {
	if val, ok := f.nodeMap.Load(nodeID); ok {
		if meta, ok := val.(*NodeMeta); ok {
			return meta.HttpAddr
		}
	}
	return ""
}

func (f *FSM) GetNodePubKey(nodeID string) string {
	if val, ok := f.nodeMap.Load(nodeID); ok {
		if meta, ok := val.(*NodeMeta); ok {
			return meta.PubKey
		}
	}
	return ""
}

func (f *FSM) GetNodeMeta(nodeID string) *NodeMeta {
	if val, ok := f.nodeMap.Load(nodeID); ok {
		if meta, ok := val.(*NodeMeta); ok {
			return meta
		}
	}
	return nil
}

// applyNodeMeta stores node metadata locally without going through the
// log. Used as an immediate fallback for the node's own address.
func (f *FSM) applyNodeMeta(nodeID string, nodeInfo []byte) error {
	var meta NodeMeta
	if err := json.Unmarshal(nodeInfo, &meta); err != nil {
		return err
	}
	meta.NodeID = nodeID
	f.nodeMap.Store(nodeID, &meta)
	f.saveNodes()
	if f.rm != nil && nodeID != f.rm.NodeID {
		f.setInitialized()
	}
	return nil
}

func (f *FSM) applyCommand(cmd RaftCommand, index uint64) interface{} {
	switch cmd.Type {
	case CmdSaveGame:
		return f.applySaveGame(cmd.ID, *cmd.GameData, index, cmd.Force)
	case CmdRecordAtBat:
		return f.applyRecordAtBat(cmd.AtBat, index)
	case CmdSaveRoster:
		return f.applySaveRoster(cmd.ID, *cmd.RosterData, index)
	case CmdNodeMeta:
		if cmd.NodeMeta == nil {
			return fmt.Errorf("missing node meta")
		}
		f.nodeMap.Store(cmd.NodeMeta.NodeID, cmd.NodeMeta)
		f.saveNodes()
		if f.rm != nil && (cmd.NodeMeta.NodeID != f.rm.NodeID || f.rm.Bootstrap) {
			f.setInitialized()
		}
		return nil
	case CmdNodeLeft:
		if cmd.NodeMeta == nil {
			return fmt.Errorf("missing node meta for leave")
		}
		f.nodeMap.Delete(cmd.NodeMeta.NodeID)
		f.saveNodes()
		return nil
	case CmdUpdateAccessPolicy:
		if cmd.PolicyData == nil {
			return fmt.Errorf("missing policy data")
		}
		return f.applyUpdateAccessPolicy(cmd.PolicyData)
	case CmdMetricsUpdate:
		if cmd.MetricsPayload == nil {
			return nil
		}
		return f.applyMetricsUpdate(cmd.MetricsPayload)
	default:
		return fmt.Errorf("unknown command type: %s", cmd.Type)
	}
}

// applyRecordAtBat replays one at-bat through the engine. The request
// carries pre-assigned id and timestamp, so the resulting AtBat and
// Game are identical on every node.
func (f *FSM) applyRecordAtBat(req *RecordAtBatRequest, index uint64) interface{} {
	if req == nil {
		return fmt.Errorf("missing at-bat payload")
	}
	existing, err := f.gs.LoadGame(req.GameID)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load game %s: %w", req.GameID, err)
	}
	if existing != nil && index > 0 && index <= existing.LastRaftIndex {
		return nil // Already applied
	}

	r := *req
	r.RaftIndex = index
	res, err := f.proc.RecordAtBat(&r)
	if err != nil {
		return err
	}

	newBytes, _ := json.Marshal(res.Game)
	f.r.UpdateGame(*res.Game)
	f.broadcastGameUpdate(req.GameID, newBytes, false, 1)
	return res
}

func (f *FSM) broadcastGameUpdate(gameID string, data []byte, skipBroadcast bool, numAtBats int) {
	if f.hm == nil {
		return
	}
	f.hm.BroadcastToGame(gameID, data, skipBroadcast, numAtBats)
}

// applySaveGame stores a full game document, used for creation and the
// life-cycle transitions. The version must move strictly forward
// unless the write is forced.
func (f *FSM) applySaveGame(id string, data []byte, index uint64, force bool) error {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("failed to unmarshal game data: %w", err)
	}

	existing, err := f.gs.LoadGame(id)
	if err == nil {
		if index > 0 && index <= existing.LastRaftIndex {
			return nil
		}
		if !force && g.Version <= existing.Version {
			return fmt.Errorf("incoming game version %d is not ahead of %d: %w", g.Version, existing.Version, ErrConflict)
		}
	}

	if index > 0 {
		g.LastRaftIndex = index
	}

	if err := f.gs.SaveGame(&g); err != nil {
		return err
	}

	f.r.UpdateGame(g)
	f.broadcastGameUpdate(id, data, true, 0)
	return nil
}

func (f *FSM) applySaveRoster(id string, data []byte, index uint64) error {
	var r Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("failed to unmarshal roster data: %w", err)
	}

	existing, err := f.rs.LoadRoster(id)
	if err == nil {
		if index > 0 && index <= existing.LastRaftIndex {
			return nil
		}
	}

	if index > 0 {
		r.LastRaftIndex = index
	}

	if err := f.rs.SaveRoster(&r); err != nil {
		return err
	}
	f.r.UpdateRoster(r)
	return nil
}

func (f *FSM) applyMetricsUpdate(p *MetricsPayload) error {
	f.metricsMu.Lock()
	defer f.metricsMu.Unlock()

	f.metrics.LastUpdate = p.Timestamp

	for _, nm := range p.Nodes {
		f.metrics.GetNodeSeries(nm.NodeID).Ingest(p.Timestamp, nm.RPS)
		f.metrics.GetNodeSeries(nm.NodeID+":ws").Ingest(p.Timestamp, float64(nm.ActiveWS))
		f.metrics.GetNodeLatencySeries(nm.NodeID).Ingest(p.Timestamp, nm.Latency)
	}

	if p.Cluster != nil {
		f.metrics.GetClusterSeries("nodeCount").Ingest(p.Timestamp, float64(p.Cluster.NodeCount))
		f.metrics.GetClusterSeries("elections").Ingest(p.Timestamp, float64(p.Cluster.Elections))
		f.metrics.GetClusterSeries("lastLogIndex").Ingest(p.Timestamp, float64(p.Cluster.LastLogIndex))
		f.metrics.GetClusterSeries("snapshots").Ingest(p.Timestamp, float64(p.Cluster.Snapshots))
		f.metrics.GetClusterSeries("leaderGapMs").Ingest(p.Timestamp, float64(p.Cluster.LeaderGapMS))
		f.metrics.GetClusterSeries("totalGames").Ingest(p.Timestamp, float64(p.Cluster.TotalGames))
		f.metrics.GetClusterSeries("liveGames").Ingest(p.Timestamp, float64(p.Cluster.LiveGames))
	}

	return nil
}

func (f *FSM) applyUpdateAccessPolicy(policy *UserAccessPolicy) error {
	if f.storage != nil {
		if err := f.storage.SaveDataFile("sys_access_policy", policy); err != nil {
			return fmt.Errorf("failed to save access policy: %w", err)
		}
	}
	f.r.UpdateAccessPolicy(policy)
	return nil
}

// FSMSnapshot represents a snapshot of the FSM state.
type FSMSnapshot struct {
	fsm *FSM
}

// Persist saves the snapshot to the given sink.
func (s *FSMSnapshot) Persist(sink raft.SnapshotSink) error {
	return s.fsm.persist(sink)
}

// Release releases the snapshot.
func (s *FSMSnapshot) Release() {}

func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	// Flush all dirty state to disk so the snapshotter reads fresh data.
	if err := f.gs.FlushAll(); err != nil {
		log.Printf("FSM Snapshot Error: flushing games failed: %v", err)
		return nil, err
	}

	state := map[string]any{
		"lastAppliedIndex": f.LastAppliedIndex(),
		"timestamp":        time.Now().UnixNano(),
	}
	if f.storage != nil {
		if err := f.storage.SaveDataFile("fsm_state.json", state); err != nil {
			log.Printf("Warning: failed to save fsm_state.json: %v", err)
		}
		f.metricsMu.RLock()
		if err := f.storage.SaveDataFile("metrics.json", f.metrics); err != nil {
			log.Printf("Warning: failed to save metrics.json: %v", err)
		}
		f.metricsMu.RUnlock()
	}

	return &FSMSnapshot{fsm: f}, nil
}

func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	if err := f.restore(rc); err != nil {
		return err
	}
	// Re-build registry after restoration
	f.r.Rebuild()
	if f.storage != nil {
		var m MetricsStore
		if err := f.storage.ReadDataFile("metrics.json", &m); err == nil {
			m.Hydrate()
			f.metricsMu.Lock()
			f.metrics = &m
			f.metricsMu.Unlock()
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: failed to restore metrics.json: %v", err)
		}
	}
	return nil
}

func (f *FSM) FlushAll() error {
	return f.gs.FlushAll()
}
