package search

import (
	"fmt"
	"sync"
)

// Panel identifies a filter panel. At most one is open at a time.
type Panel string

const (
	PanelNone    Panel = "none"
	PanelRadius  Panel = "radius"
	PanelDate    Panel = "date"
	PanelPrice   Panel = "price"
	PanelType    Panel = "type"
	PanelPartner Panel = "partner"
)

// ParsePanel validates a panel name
func ParsePanel(s string) (Panel, error) {
	switch p := Panel(s); p {
	case PanelNone, PanelRadius, PanelDate, PanelPrice, PanelType, PanelPartner:
		return p, nil
	}
	return PanelNone, fmt.Errorf("unknown panel %q", s)
}

// ClickTarget says what a click landed on
type ClickTarget string

const (
	TargetOutside ClickTarget = "outside"
	TargetTrigger ClickTarget = "trigger"
	TargetContent ClickTarget = "content"
)

// Click is a pointer event on the search view
type Click struct {
	Target ClickTarget `json:"target"`
	Panel  Panel       `json:"panel,omitempty"`
}

// ClickBus fans clicks out to subscribers
type ClickBus struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(Click)
}

// NewClickBus creates an empty bus
func NewClickBus() *ClickBus {
	return &ClickBus{handlers: make(map[int]func(Click))}
}

// Subscribe registers fn and returns a func that removes it. The returned
// func may be called any number of times.
func (b *ClickBus) Subscribe(fn func(Click)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers c to every subscriber. Handlers run without the bus lock
// held, so they may unsubscribe.
func (b *ClickBus) Publish(c Click) {
	b.mu.Lock()
	handlers := make([]func(Click), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(c)
	}
}

// Subscribers returns the number of live subscriptions
func (b *ClickBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// Panels tracks the open filter panel. While one is open it holds a single
// outside-click subscription on the bus.
type Panels struct {
	mu      sync.Mutex
	bus     *ClickBus
	active  Panel
	release func()
}

// NewPanels creates a panel set with everything closed
func NewPanels(bus *ClickBus) *Panels {
	return &Panels{bus: bus, active: PanelNone}
}

// Active returns the open panel or PanelNone
func (p *Panels) Active() Panel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Toggle opens panel, closing any other, or closes it if already open.
// It returns the panel left open.
func (p *Panels) Toggle(panel Panel) Panel {
	p.mu.Lock()
	defer p.mu.Unlock()

	if panel == PanelNone || panel == p.active {
		p.closeLocked()
		return p.active
	}

	p.active = panel
	if p.release == nil {
		p.release = p.bus.Subscribe(p.onClick)
	}
	return p.active
}

// CloseAll closes the open panel and releases the click subscription
func (p *Panels) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Panels) closeLocked() {
	p.active = PanelNone
	if p.release != nil {
		p.release()
		p.release = nil
	}
}

func (p *Panels) onClick(c Click) {
	if c.Target == TargetTrigger || c.Target == TargetContent {
		return
	}
	p.CloseAll()
}
