package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/securetalk/internal/config"
	"github.com/Tyrowin/securetalk/internal/session"
	"github.com/Tyrowin/securetalk/internal/store"
)

// Hub owns every live WebSocket connection: it registers and unregisters
// clients, launches their read/write pumps, routes outbound frames through
// the connection registry, and coordinates graceful shutdown.
type Hub struct {
	registry *Registry
	store    *store.Store
	sessions *session.Store
	cfg      *config.Config
	origins  *originPolicy
	logger   zerolog.Logger

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub wired to its collaborators. Call Run in a separate
// goroutine to start it.
func NewHub(cfg *config.Config, st *store.Store, sessions *session.Store, logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:   NewRegistry(),
		store:      st,
		sessions:   sessions,
		cfg:        cfg,
		origins:    newOriginPolicy(cfg.AllowedOrigins, logger),
		logger:     logger.With().Str("component", "hub").Logger(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Registry exposes the hub's connection registry for presence queries.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Run is the hub's main event loop, handling client registration and
// unregistration. It runs until Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				continue
			}

			h.mutex.Lock()
			client.closed = false
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug().Str("addr", client.addr).Int("clients", clientCount).Msg("client connected")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// removeClient drops a client from the hub and the registry and closes its
// send channel. Unbind is idempotent, so removal is always safe whether or
// not the client ever authenticated or was displaced.
func (h *Hub) removeClient(client *Client) {
	h.registry.Unbind(client)

	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	h.logger.Debug().Str("addr", client.addr).Int("clients", clientCount).Msg("client disconnected")
}

// sendFrame marshals an outbound frame and queues it on a client's send
// channel. It reports false when the client is gone or its buffer is full;
// a client that cannot keep up is removed.
func (h *Hub) sendFrame(client *Client, frame any) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshaling outbound frame")
		return false
	}

	if h.trySend(client, payload) {
		return true
	}

	h.removeFailedClient(client)
	return false
}

func (h *Hub) trySend(client *Client, payload []byte) (sent bool) {
	// The send channel can close between the registration check and the
	// send below; treat that as a failed delivery.
	defer func() {
		if r := recover(); r != nil {
			sent = false
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, ok := h.clients[client]; !ok || client.closed {
		return false
	}

	select {
	case client.send <- payload:
		return true
	default:
		return false
	}
}

// removeFailedClient drops a client whose send buffer is stuck.
func (h *Hub) removeFailedClient(client *Client) {
	h.registry.Unbind(client)

	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	h.mutex.Unlock()

	close(client.send)
	h.logger.Warn().Str("addr", client.addr).Msg("client removed due to full send buffer")
}

// shutdownClients closes every active connection.
func (h *Hub) shutdownClients() {
	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.logger.Warn().Err(err).Str("addr", client.addr).Msg("closing client connection")
			}
		}
	}

	h.logger.Info().Int("clients", len(clients)).Msg("closed client connections")
}

// Shutdown stops the hub and waits for all client goroutines to finish,
// or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn().Msg("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
