// Package eventlog is the telemetry tap described in spec §2.9 and §9:
// a typed event stream, fanned out to subscriber observers, with the
// stable "[CATEGORY] text" ASCII form rendered only at the observer
// boundary for backward compatibility with the existing UI translator.
//
// Grounded on the teacher's category-tagged console stream
// (text_color_set/dw_printf in src/log.go, src/ax25_pad.go) redesigned
// per the "Logging as observable event stream" note in spec §9: no
// string-prefix grepping, a typed enum instead.
package eventlog

import (
	"fmt"
	"sort"
	"sync"
)

// Category is one of the eight tags enumerated in spec §2.9.
type Category string

const (
	System   Category = "SYSTEM"
	Client   Category = "CLIENT"
	Session  Category = "SESSION"
	Packet   Category = "PACKET"
	Control  Category = "CONTROL"
	Progress Category = "PROGRESS"
	Warning  Category = "WARNING"
	Error    Category = "ERROR"
)

// Event is one observable occurrence on the link. Text is the
// already-formatted body; Fields carries the same data in structured
// form for observers that want it without re-parsing Text.
type Event struct {
	Category Category
	Text     string
	Fields   map[string]any
}

// Line renders the stable "[CATEGORY] text" form from spec §6. It is
// guaranteed newline-free, as the contract requires.
func (e Event) Line() string {
	return fmt.Sprintf("[%s] %s", e.Category, stripNewlines(e.Text))
}

func stripNewlines(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			out = append(out, ' ')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

// Observer receives events as they are emitted. Implementations must
// not block the emitting session loop for long; Bus delivers
// synchronously to each subscriber in subscription order.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Bus is the fan-out observer list. Subscribe/Unsubscribe are the only
// operations requiring a lock, per spec §5's locking discipline — all
// other session mutation happens on the single session loop.
type Bus struct {
	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
}

func NewBus() *Bus {
	return &Bus{observers: make(map[int]Observer)}
}

// Subscribe registers an observer and returns a token for Unsubscribe.
func (b *Bus) Subscribe(o Observer) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.observers[id] = o
	return id
}

func (b *Bus) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.observers, token)
}

// Emit fans an event out to all current subscribers.
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	ids := make([]int, 0, len(b.observers))
	for id := range b.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids) // tokens grow with each Subscribe, so this is subscription order
	snapshot := make([]Observer, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, b.observers[id])
	}
	b.mu.Unlock()

	for _, o := range snapshot {
		o.OnEvent(e)
	}
}

func (b *Bus) Emitf(cat Category, format string, args ...any) {
	b.Emit(Event{Category: cat, Text: fmt.Sprintf(format, args...)})
}
