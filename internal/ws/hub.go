package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/evetabi/predict/internal/domain"
	"github.com/gorilla/websocket"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tunables
// ──────────────────────────────────────────────────────────────────────────────

const (
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 35 * time.Second // must be > pingInterval
	maxMessageSize = 512              // bytes; clients only send pongs
	sendBufferSize = 256              // messages in each client send channel
)

// TokenVerifier maps a bearer token to the wallet address it was issued to.
// Implemented by service.AuthService.
type TokenVerifier interface {
	AddressFromToken(token string) (common.Address, error)
}

// ──────────────────────────────────────────────────────────────────────────────
// Client
// ──────────────────────────────────────────────────────────────────────────────

// Client represents one connected WebSocket endpoint.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte    // buffered outbound message queue
	address common.Address // zero-value = anonymous
}

type directMessage struct {
	to   common.Address
	data []byte
}

// ──────────────────────────────────────────────────────────────────────────────
// Hub
// ──────────────────────────────────────────────────────────────────────────────

// Hub maintains the set of active clients and routes broadcast messages.
// Run() must be called in a dedicated goroutine before ServeWs is used.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// channels consumed by Run()
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run returns

	// tokens may be nil; all connections are then anonymous.
	tokens TokenVerifier

	upgrader websocket.Upgrader
}

// NewHub creates a Hub ready to be started with Run().
func NewHub(tokens TokenVerifier, allowedOrigins []string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 512),
		direct:     make(chan directMessage, 128),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		tokens:     tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowedOrigins) == 0 {
					return true // dev mode: allow all
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == "*" || o == origin {
						return true
					}
				}
				return false
			},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Run: hub event loop
// ──────────────────────────────────────────────────────────────────────────────

// Run processes registration, unregistration and outbound messages
// sequentially until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's buffer full; the writePump notices a stalled
					// connection on its own.
				}
			}
			h.mu.RUnlock()

		case msg := <-h.direct:
			h.mu.RLock()
			for client := range h.clients {
				if client.address != msg.to {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// ConnectedCount returns the current number of connected clients.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────────────────────────────────────────────────────────────────
// ServeWs: HTTP → WebSocket upgrade
// ──────────────────────────────────────────────────────────────────────────────

// ServeWs upgrades an HTTP request to a WebSocket connection, optionally
// tags the caller with its wallet address via a JWT in the ?token= query
// parameter, and starts the read/write pumps. An invalid token downgrades
// the connection to anonymous rather than refusing it.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws.ServeWs: upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	tokenRejected := false
	if token := r.URL.Query().Get("token"); token != "" && h.tokens != nil {
		if addr, err := h.tokens.AddressFromToken(token); err == nil {
			client.address = addr
		} else {
			tokenRejected = true
		}
	}

	if tokenRejected {
		h.SendError(client, "TOKEN_INVALID", "token rejected; connected anonymously")
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ──────────────────────────────────────────────────────────────────────────────
// Client pumps
// ──────────────────────────────────────────────────────────────────────────────

// writePump drains the client's send channel and writes messages to the
// WebSocket connection. It also sends ping frames every pingInterval.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				// Hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads frames from the WebSocket connection. Only pongs matter
// (they reset the read deadline); the protocol is server-push only. When the
// connection drops the client is unregistered.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws.readPump: unexpected close for %s: %v", c.address.Hex(), err)
			}
			return
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast helpers: implement service.Broadcaster and scheduler.Notifier
// ──────────────────────────────────────────────────────────────────────────────

// BroadcastEvent turns a committed ledger event into its WS message.
// winnings_claimed goes only to the claimant's connections.
func (h *Hub) BroadcastEvent(e domain.Event, m domain.MarketSummary) {
	ts := e.OccurredAt
	switch e.Type {
	case domain.EventMarketCreated:
		h.broadcastJSON(MarketCreatedMessage{
			Type: MsgTypeMarketCreated, Seq: e.Seq, Market: m, Timestamp: ts,
		})
	case domain.EventBetPlaced:
		h.broadcastJSON(BetPlacedMessage{
			Type:      MsgTypeBetPlaced,
			Seq:       e.Seq,
			MarketID:  e.MarketID,
			Bettor:    e.Actor,
			IsYes:     e.IsYes,
			Amount:    e.Amount,
			YesPool:   m.YesPool,
			NoPool:    m.NoPool,
			TotalPool: m.TotalPool,
			Odds:      m.Odds,
			Timestamp: ts,
		})
	case domain.EventMarketResolved:
		h.broadcastJSON(MarketResolvedMessage{
			Type:        MsgTypeMarketResolved,
			Seq:         e.Seq,
			MarketID:    e.MarketID,
			Outcome:     e.Outcome.String(),
			Resolver:    e.Actor,
			YesPool:     m.YesPool,
			NoPool:      m.NoPool,
			ProtocolFee: m.ProtocolFee,
			Timestamp:   ts,
		})
	case domain.EventWinningsClaimed:
		h.SendToAddress(e.Actor, WinningsClaimedMessage{
			Type:      MsgTypeWinningsClaimed,
			Seq:       e.Seq,
			MarketID:  e.MarketID,
			Claimant:  e.Actor,
			Amount:    e.Amount,
			Timestamp: ts,
		})
	default:
		log.Printf("ws.Hub: no message for event type %q", e.Type)
	}
}

// BroadcastMarketClosed announces that betting on m has ended.
func (h *Hub) BroadcastMarketClosed(m domain.MarketSummary) {
	h.broadcastJSON(MarketClosedMessage{
		Type:      MsgTypeMarketClosed,
		MarketID:  m.ID,
		Question:  m.Question,
		Resolver:  m.Resolver,
		Deadline:  m.Deadline,
		YesPool:   m.YesPool,
		NoPool:    m.NoPool,
		Timestamp: time.Now().UTC(),
	})
}

// SendToAddress queues v for every connection tagged with addr.
func (h *Hub) SendToAddress(addr common.Address, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws.Hub: marshal error: %v", err)
		return
	}
	select {
	case h.direct <- directMessage{to: addr, data: data}:
	default:
		log.Printf("ws.Hub: direct channel full, message to %s dropped", addr.Hex())
	}
}

// broadcastJSON is the common marshalling path.
func (h *Hub) broadcastJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ws.Hub: marshal error: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("ws.Hub: broadcast channel full, message dropped")
	}
}

// SendError writes an error message directly to one client's send channel.
func (h *Hub) SendError(client *Client, code, message string) {
	data, err := json.Marshal(ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}
