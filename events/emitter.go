// Package events is the node's in-process publish/subscribe bus. Events are
// emitted only after the repository changes they describe are committed.
package events

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/qorachain/internal/logging"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockProcessed EventType = "block_processed"
	EventBlockOrphaned  EventType = "block_orphaned"
	EventBlockForged    EventType = "block_forged"
	EventTxProcessed    EventType = "tx_processed"
	EventSyncCompleted  EventType = "sync_completed"
)

// Event carries a typed payload emitted after a state change. Signature is
// the hex signature of the block or transaction the event is about.
type Event struct {
	Type        EventType      `json:"type"`
	Signature   string         `json:"signature"`
	BlockHeight int            `json:"block_height"`
	Data        map[string]any `json:"data,omitempty"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	log      logrus.FieldLogger
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers. log may be nil.
func NewEmitter(log logrus.FieldLogger) *Emitter {
	return &Emitter{
		log:      logging.OrDiscard(log),
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot halt block processing.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.WithField("event", ev.Type).Errorf("Event handler panicked: %v", r)
				}
			}()
			h(ev)
		}()
	}
}
