package webserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"kartpitsbot/pkg/pubsub"
)

const (
	MessageState = "state"
	MessageEvent = "event"

	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{} // use default options

// Message is the envelope of everything pushed over /ws.
type Message struct {
	MessageType string `json:"type"`
	Body        any    `json:"body,omitempty"`
}

// websocketHandler sends the current state, then every published state and
// event until the client goes away.
func (m *Manager) websocketHandler(w http.ResponseWriter, r *http.Request) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer c.Close()

	states := m.race.States().Subscribe(pubsub.TopicState)
	defer m.race.States().Unsubscribe(pubsub.TopicState, states)
	events := m.race.Events().Subscribe(pubsub.TopicEvents)
	defer m.race.Events().Unsubscribe(pubsub.TopicEvents, events)

	// the client never sends anything useful; reading detects the close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg Message) bool {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteJSON(msg); err != nil {
			m.logger.Debug("websocket write failed", "error", err)
			return false
		}
		return true
	}

	if !send(Message{MessageType: MessageState, Body: m.race.State()}) {
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case st, ok := <-states:
			if !ok || !send(Message{MessageType: MessageState, Body: st}) {
				return
			}
		case ev, ok := <-events:
			if !ok || !send(Message{MessageType: MessageEvent, Body: ev}) {
				return
			}
		}
	}
}

