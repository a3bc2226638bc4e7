package workflow

import (
	"sync"

	"github.com/sercano/qahub/utils"
)

// UpdateKind discriminates live workflow updates.
type UpdateKind string

const (
	// UpdateLog carries one appended log line.
	UpdateLog UpdateKind = "log"
	// UpdatePhase carries a phase transition.
	UpdatePhase UpdateKind = "phase"
)

// Update is one live notification from a running workflow
type Update struct {
	Seq     int
	Kind    UpdateKind
	Line    string
	Phase   Phase
	Message string // failure reason on a failed-phase update
}

// Bus fans workflow updates out to subscribers (the TUI console, the CLI
// printer). Slow subscribers lose updates rather than stalling the runner;
// they can always re-read the full state from a snapshot.
type Bus struct {
	mu     sync.Mutex
	seq    int
	subs   map[int]chan Update
	nextID int
	logger *utils.LoggerWithContext
}

// NewBus creates an empty update bus
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[int]chan Update),
		logger: utils.GetLogger().WithSource("workflow_bus"),
	}
}

// Subscribe registers a subscriber. The returned cancel function must be
// called to release the subscription.
func (b *Bus) Subscribe() (<-chan Update, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Update, 256)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// publish delivers an update to every subscriber, dropping it for
// subscribers whose buffer is full
func (b *Bus) publish(update Update) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	update.Seq = b.seq

	for id, ch := range b.subs {
		select {
		case ch <- update:
		default:
			b.logger.Warn("Dropping update for slow subscriber", map[string]interface{}{
				"subscriber": id,
				"seq":        update.Seq,
			})
		}
	}
}
