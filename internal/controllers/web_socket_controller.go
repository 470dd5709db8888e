package controllers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/events"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 32
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the feed is public
	},
}

// ClientGauge tracks how many feed clients are connected.
type ClientGauge interface {
	WebsocketClientsSet(n int)
}

// fleetClient is one subscriber. An empty driverID receives every bus.
type fleetClient struct {
	conn     *websocket.Conn
	driverID string
	send     chan events.Event
}

// FleetHub manages live fleet feed connections and broadcasts bus events to
// them. It implements events.Publisher.
type FleetHub struct {
	clients   map[*fleetClient]bool
	broadcast chan events.Event
	mu        sync.Mutex
	gauge     ClientGauge
	done      chan struct{}
	closeOnce sync.Once
}

// NewFleetHub creates a hub and starts its broadcast loop.
func NewFleetHub(gauge ClientGauge) *FleetHub {
	hub := &FleetHub{
		clients:   make(map[*fleetClient]bool),
		broadcast: make(chan events.Event, 256),
		gauge:     gauge,
		done:      make(chan struct{}),
	}
	go hub.run()
	return hub
}

// run fans each event out to the matching clients. Slow clients whose send
// buffer is full miss the event.
func (h *FleetHub) run() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.driverID != "" && client.driverID != ev.DriverID {
					continue
				}
				select {
				case client.send <- ev:
				default:
					logrus.WithField("conn_ptr", fmt.Sprintf("%p", client.conn)).Warn("Fleet feed client too slow, dropping event.")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues an event for broadcast without blocking the caller.
func (h *FleetHub) Publish(_ context.Context, ev events.Event) error {
	select {
	case h.broadcast <- ev:
	default:
		logrus.Warn("Fleet broadcast channel full, dropping event.")
	}
	return nil
}

// Close stops the broadcast loop and disconnects every client.
func (h *FleetHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		for client := range h.clients {
			_ = client.conn.Close()
		}
		h.mu.Unlock()
	})
}

// Clients reports the number of connected clients.
func (h *FleetHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *FleetHub) register(client *fleetClient) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.setGauge(n)

	logrus.WithFields(logrus.Fields{
		"driver_id": client.driverID,
		"conn_ptr":  fmt.Sprintf("%p", client.conn),
	}).Info("Client registered with FleetHub.")
}

func (h *FleetHub) unregister(client *fleetClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.setGauge(n)

	logrus.WithField("conn_ptr", fmt.Sprintf("%p", client.conn)).Info("Client unregistered from FleetHub.")
}

func (h *FleetHub) setGauge(n int) {
	if h.gauge != nil {
		h.gauge.WebsocketClientsSet(n)
	}
}

// HandleFleetWebSocket streams bus events to the caller. The optional
// driver_id query parameter narrows the feed to one bus.
func (h *FleetHub) HandleFleetWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}

	client := &fleetClient{
		conn:     conn,
		driverID: c.Query("driver_id"),
		send:     make(chan events.Event, sendBuffer),
	}
	h.register(client)

	go h.writePump(client)
	h.readPump(client)
}

// readPump discards client messages and notices disconnects.
func (h *FleetHub) readPump(client *fleetClient) {
	defer func() {
		h.unregister(client)
		_ = client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).Warn("Fleet feed connection closed unexpectedly.")
			}
			return
		}
	}
}

func (h *FleetHub) writePump(client *fleetClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(ev); err != nil {
				logrus.WithError(err).Debug("Fleet feed write failed.")
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
