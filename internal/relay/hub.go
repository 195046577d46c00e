// Package relay carries replication envelopes between observers and the
// authoritative holder over websockets. The holder consumes its inbox from a
// single goroutine, so requests apply one at a time in arrival order.
package relay

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/constants"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/logging"
	"github.com/Strangley-Browne/RMU-Phase-Tracker/internal/replication"
)

const inboxSize = 256

type subscriber struct {
	id         string
	combatCode string
	sub        string
	gm         bool
	conn       *websocket.Conn
	// writeMu serializes writes; gorilla permits one concurrent writer.
	writeMu sync.Mutex
}

func (s *subscriber) send(env replication.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(env)
}

type inboundRequest struct {
	env    replication.Envelope
	origin *subscriber
}

// Hub owns the websocket subscribers and the holder inbox.
type Hub struct {
	holder   *replication.Holder
	upgrader websocket.Upgrader
	inbox    chan inboundRequest

	mu          sync.Mutex
	subscribers map[string]map[*subscriber]struct{}
}

func NewHub(holder *replication.Holder) *Hub {
	h := &Hub{
		holder: holder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		inbox:       make(chan inboundRequest, inboxSize),
		subscribers: map[string]map[*subscriber]struct{}{},
	}
	go h.run()
	return h
}

// run is the holder loop. Everything that mutates authoritative state goes
// through here.
func (h *Hub) run() {
	for req := range h.inbox {
		out := h.holder.ApplyAuthorized(req.env, req.origin.sub, req.origin.gm)
		if out.Broadcast != nil {
			h.Broadcast(req.origin.combatCode, *out.Broadcast)
		}
		if out.Reply != nil {
			if err := req.origin.send(*out.Reply); err != nil {
				logging.Warn("failed to reply to observer", logging.Fields{
					constants.LogFieldObserver: req.origin.id,
					"error":                    err.Error(),
				})
			}
		}
	}
}

// Broadcast sends an envelope to every subscriber of a combat.
func (h *Hub) Broadcast(combatCode string, env replication.Envelope) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers[combatCode]))
	for s := range h.subscribers[combatCode] {
		subs = append(subs, s)
	}
	h.mu.Unlock()
	for _, s := range subs {
		if err := s.send(env); err != nil {
			logging.Warn("failed to broadcast to observer", logging.Fields{
				constants.LogFieldObserver: s.id,
				"error":                    err.Error(),
			})
		}
	}
}

func (h *Hub) register(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subscribers[s.combatCode]
	if !ok {
		set = map[*subscriber]struct{}{}
		h.subscribers[s.combatCode] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) unregister(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subscribers[s.combatCode]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subscribers, s.combatCode)
	}
}

// ServeWS upgrades a connection whose session scope and identity the caller
// has already verified, then pumps its messages into the holder inbox.
// Envelope combat and origin are overwritten server-side; a client cannot
// write outside its own combat or spoof another origin, and each set-path is
// authorized against the session's sub before it touches the store.
func (h *Hub) ServeWS(c *gin.Context, combatCode, sessionSub string, gm bool) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	sub := &subscriber{
		id:         uuid.NewString(),
		combatCode: combatCode,
		sub:        sessionSub,
		gm:         gm,
		conn:       conn,
	}
	h.register(sub)
	defer func() {
		h.unregister(sub)
		conn.Close()
	}()
	logging.Info("observer connected", logging.Fields{
		constants.LogFieldCombatID: combatCode,
		constants.LogFieldObserver: sub.id,
	})

	for {
		var env replication.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			logging.Info("observer disconnected", logging.Fields{
				constants.LogFieldCombatID: combatCode,
				constants.LogFieldObserver: sub.id,
			})
			return
		}
		env.CombatID = combatCode
		env.Origin = sub.id
		h.inbox <- inboundRequest{env: env, origin: sub}
	}
}
