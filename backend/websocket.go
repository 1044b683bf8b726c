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
	"log"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

// Message types for WebSocket communication
const (
	MsgTypeJoin       = "JOIN"
	MsgTypeAck        = "ACK"
	MsgTypeGameUpdate = "GAME_UPDATE"
	MsgTypeAtBat      = "AT_BAT"
	MsgTypeError      = "ERROR"
)

// Message represents a WebSocket message. Clients JOIN with the number
// of at-bats they have already seen; the server replies with the
// current game snapshot and any at-bats recorded since.
type Message struct {
	Type    string            `json:"type"`
	GameID  string            `json:"gameId,omitempty"`
	LastSeq int               `json:"lastSeq,omitempty"`
	Game    json.RawMessage   `json:"game,omitempty"`
	AtBats  []json.RawMessage `json:"atBats,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// HubRequest types
const (
	ReqTypeWSJoin    = "WS_JOIN"
	ReqTypeHTTPLoad  = "HTTP_LOAD"
	ReqTypeBroadcast = "BROADCAST"
)

// HubRequest represents a request to the Hub
type HubRequest struct {
	Type          string
	Client        *wsClient // For WS requests
	Message       Message   // For WS requests
	Payload       []byte    // For Broadcast: the new game document
	SkipBroadcast bool      // For Broadcast: refresh cache only
	NumAtBats     int       // For Broadcast: at-bats to push from the end of the log
	Reply         chan HubResponse
}

// HubResponse represents a response from the Hub
type HubResponse struct {
	Data  []byte
	Error error
}

// Hub maintains the set of active spectator connections for a single
// game and pushes state updates to them. All state access is
// serialized through the hub goroutine.
type Hub struct {
	gameID string

	clients    map[*wsClient]bool
	requests   chan HubRequest
	register   chan *wsClient
	unregister chan *wsClient

	// In-memory game snapshot.
	gameData *Game

	gs *GameStore
	as *AtBatStore
	r  *Registry
	hm *HubManager
}

func newHub(id string, gs *GameStore, as *AtBatStore, r *Registry, hm *HubManager) *Hub {
	return &Hub{
		gameID:     id,
		requests:   make(chan HubRequest, 64), // Buffered to prevent dropping FSM updates
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		clients:    make(map[*wsClient]bool),
		gs:         gs,
		as:         as,
		r:          r,
		hm:         hm,
	}
}

func (h *Hub) run() {
	idleTimer := time.NewTicker(5 * time.Minute)
	defer idleTimer.Stop()

	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.hm.connCount.Add(1)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.hm.connCount.Add(-1)
			}
		case req := <-h.requests:
			h.ensureLoaded(req.Reply)
			if h.gameData == nil {
				if req.Client != nil {
					req.Client.sendJSON(Message{Type: MsgTypeError, Error: "Server error loading game"})
				}
				continue
			}

			switch req.Type {
			case ReqTypeWSJoin:
				if req.Client != nil && !h.clients[req.Client] {
					continue
				}
				h.handleWSJoin(req.Client, req.Message)
			case ReqTypeHTTPLoad:
				h.handleHTTPLoad(req.Reply)
			case ReqTypeBroadcast:
				h.handleBroadcast(req.Payload, req.SkipBroadcast, req.NumAtBats)
			}
		case <-idleTimer.C:
			if len(h.clients) == 0 {
				h.hm.RemoveHub(h.gameID)
				return
			}
		}
	}
}

func (h *Hub) ensureLoaded(reply chan HubResponse) {
	if h.gameData != nil {
		return
	}
	g, err := h.gs.LoadGame(h.gameID)
	if err != nil {
		if os.IsNotExist(err) {
			h.gameData = &Game{ID: h.gameID}
			return
		}
		log.Printf("Hub: Error loading game %s: %v", h.gameID, err)
		if reply != nil {
			reply <- HubResponse{Error: err}
		}
		return
	}
	h.gameData = g
}

func (h *Hub) handleWSJoin(c *wsClient, msg Message) {
	if h.gameData.OwnerID != "" {
		access := GetGameAccess(c.userID, *h.gameData, h.r.rosterStore)
		if access < AccessRead {
			log.Printf("Forbidden: User %s attempted to join game %s without permissions", maskEmail(c.userID), h.gameID)
			c.sendJSON(Message{Type: MsgTypeError, Error: "Forbidden: You do not have access to this game"})
			return
		}
	}

	gameBytes, err := json.Marshal(h.gameData)
	if err != nil {
		c.sendJSON(Message{Type: MsgTypeError, Error: "Server error"})
		return
	}

	// Catch the client up on at-bats it has not seen yet.
	var missing []json.RawMessage
	atBats, err := h.as.ListByGame(h.gameID)
	if err == nil && msg.LastSeq < len(atBats) {
		for _, ab := range atBats[msg.LastSeq:] {
			if raw, err := json.Marshal(ab); err == nil {
				missing = append(missing, raw)
			}
		}
	}

	c.sendJSON(Message{Type: MsgTypeGameUpdate, Game: gameBytes, AtBats: missing})
}

// handleBroadcast refreshes the hub's snapshot from data and, unless
// suppressed, pushes the new state plus the tail of the at-bat log to
// every connected client.
func (h *Hub) handleBroadcast(data []byte, skipBroadcast bool, numAtBats int) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		log.Printf("handleBroadcast: Error unmarshaling game data: %v", err)
		return
	}

	h.gameData = &g

	if skipBroadcast {
		return
	}

	msg := Message{Type: MsgTypeGameUpdate, Game: data}

	if numAtBats > 0 {
		atBats, err := h.as.ListByGame(h.gameID)
		if err == nil && len(atBats) > 0 {
			if numAtBats > len(atBats) {
				numAtBats = len(atBats)
			}
			for _, ab := range atBats[len(atBats)-numAtBats:] {
				if raw, err := json.Marshal(ab); err == nil {
					msg.AtBats = append(msg.AtBats, raw)
				}
			}
		}
	}

	h.broadcast(msg)
}

func (h *Hub) broadcast(msg Message) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			close(client.send)
			delete(h.clients, client)
			h.hm.connCount.Add(-1)
		}
	}
}

func (h *Hub) handleHTTPLoad(reply chan HubResponse) {
	data, err := json.Marshal(h.gameData)
	reply <- HubResponse{Data: data, Error: err}
}

// HubManager manages hubs, one per game.
type HubManager struct {
	hubs      map[string]*Hub
	mu        sync.Mutex
	connCount atomic.Int64
}

func NewHubManager() *HubManager {
	return &HubManager{
		hubs: make(map[string]*Hub),
	}
}

func (hm *HubManager) GetHub(id string, gs *GameStore, as *AtBatStore, r *Registry) *Hub {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	if hub, ok := hm.hubs[id]; ok {
		return hub
	}

	hub := newHub(id, gs, as, r, hm)
	hm.hubs[id] = hub
	go hub.run()
	return hub
}

func (hm *HubManager) RemoveHub(id string) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	delete(hm.hubs, id)
}

func (hm *HubManager) Clear() {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.hubs = make(map[string]*Hub)
}

// GetTotalConnectionCount returns the number of open websocket
// connections across all hubs.
func (hm *HubManager) GetTotalConnectionCount() int {
	return int(hm.connCount.Load())
}

func (hm *HubManager) BroadcastToGame(gameID string, data []byte, skipBroadcast bool, numAtBats int) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hub, ok := hm.hubs[gameID]
	if !ok {
		return
	}

	// Send update via channel to serialize with the hub goroutine.
	select {
	case hub.requests <- HubRequest{
		Type:          ReqTypeBroadcast,
		Payload:       data,
		SkipBroadcast: skipBroadcast,
		NumAtBats:     numAtBats,
	}:
	default:
		// Never block the raft FSM on a slow hub.
		log.Printf("Warning: Hub channel full, dropping broadcast for game %s", gameID)
	}
}

// wsClient is a middleman between the websocket connection and the hub.
type wsClient struct {
	hub *Hub

	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan Message

	userID string
	gameID string
}

// readPump pumps messages from the websocket connection to the hub.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error: %v", err)
			}
			break
		}

		switch msg.Type {
		case MsgTypeJoin:
			c.hub.requests <- HubRequest{Type: ReqTypeWSJoin, Client: c, Message: msg}
		case "PING":
			c.sendJSON(Message{Type: "PONG"})
		default:
			log.Printf("Unknown message type: %s", msg.Type)
			c.sendJSON(Message{Type: MsgTypeError, Error: "Unknown message type"})
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) sendJSON(msg Message) {
	select {
	case c.send <- msg:
	default:
	}
}

// ServeWS handles websocket requests from the peer.
func ServeWS(gs *GameStore, as *AtBatStore, r *Registry, hm *HubManager, w http.ResponseWriter, req *http.Request) {
	userID := getUserID(req)

	gameID := req.URL.Query().Get("gameId")
	if gameID == "" || !isValidUUID(gameID) {
		http.Error(w, "Invalid gameId", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Println(err)
		return
	}

	hub := hm.GetHub(gameID, gs, as, r)
	client := &wsClient{hub: hub, conn: conn, send: make(chan Message, 256), userID: userID, gameID: gameID}
	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
