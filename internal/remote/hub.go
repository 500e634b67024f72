package remote

import (
	"context"
	"sync"

	"schedule-sync-backend/internal/model"
)

// ChangeOp is the kind of change a ChangeEvent reports.
type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent describes a change that reached the backend.
type ChangeEvent struct {
	Table   model.Table
	Op      ChangeOp
	Records any
	IDs     []string
}

// Hub fans change events out to per-table subscribers.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[model.Table]map[int]func(ChangeEvent)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[model.Table]map[int]func(ChangeEvent))}
}

// Subscribe registers fn for events on table. Calling the returned func
// removes the subscription.
func (h *Hub) Subscribe(table model.Table, fn func(ChangeEvent)) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	if h.subs[table] == nil {
		h.subs[table] = make(map[int]func(ChangeEvent))
	}
	h.subs[table][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[table], id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers ev synchronously to the table's subscribers.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.RLock()
	fns := make([]func(ChangeEvent), 0, len(h.subs[ev.Table]))
	for _, fn := range h.subs[ev.Table] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Publishing wraps a Gateway and publishes every successful write to a Hub.
type Publishing struct {
	Gateway
	hub *Hub
}

func NewPublishing(gw Gateway, hub *Hub) *Publishing {
	return &Publishing{Gateway: gw, hub: hub}
}

func (p *Publishing) Upsert(ctx context.Context, table model.Table, records any) error {
	if err := p.Gateway.Upsert(ctx, table, records); err != nil {
		return err
	}
	p.hub.Publish(ChangeEvent{Table: table, Op: OpUpsert, Records: records})
	return nil
}

func (p *Publishing) Delete(ctx context.Context, table model.Table, ids []string) error {
	if err := p.Gateway.Delete(ctx, table, ids); err != nil {
		return err
	}
	p.hub.Publish(ChangeEvent{Table: table, Op: OpDelete, IDs: ids})
	return nil
}
