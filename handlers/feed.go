package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"storefront/entities"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	// the feed is authenticated by token, not by cookie
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans order events out to connected admin websocket clients. A client
// that falls behind is dropped rather than slowing down checkout.
type Hub struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{clients: map[*feedClient]struct{}{}}
}

func (hub *Hub) Publish(event entities.OrderEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Publish: %v", err)
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for c := range hub.clients {
		select {
		case c.send <- data:
		default:
			delete(hub.clients, c)
			close(c.send)
		}
	}
}

// Clients returns the number of connected subscribers.
func (hub *Hub) Clients() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

func (hub *Hub) add(c *feedClient) {
	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()
}

func (hub *Hub) remove(c *feedClient) {
	hub.mu.Lock()
	if _, ok := hub.clients[c]; ok {
		delete(hub.clients, c)
		close(c.send)
	}
	hub.mu.Unlock()
}

// Close disconnects every subscriber.
func (hub *Hub) Close() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	for c := range hub.clients {
		delete(hub.clients, c)
		close(c.send)
	}
}

func (c *feedClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// OrderFeed upgrades an admin request to a websocket and streams order events.
func (h *Handler) OrderFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("OrderFeed: %v", err)
		return
	}
	c := &feedClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.feed.add(c)
	go c.writeLoop()

	// reads only serve to notice a closed connection
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.feed.remove(c)
}
