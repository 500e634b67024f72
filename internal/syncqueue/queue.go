// Package syncqueue is the durable FIFO of writes that could not reach the
// remote backend. Items are replayed strictly in order and the pass halts
// at the first one that fails.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/model"
)

const (
	// StorageKey holds the pending items.
	StorageKey = "syncQueue"
	// RejectedKey holds items the backend refused.
	RejectedKey = "syncQueue_rejected"
)

// Storage persists the queue.
type Storage interface {
	Save(key string, value any) error
	Load(key string, dest any) bool
}

// Replayer applies changes remotely. remote.Gateway satisfies it.
type Replayer interface {
	Upsert(ctx context.Context, table model.Table, records any) error
	Delete(ctx context.Context, table model.Table, ids []string) error
}

// Item is one queued mutation.
type Item struct {
	ID         string    `json:"id"`
	ActionType string    `json:"actionType"`
	Payload    []Change  `json:"payload"`
	Timestamp  time.Time `json:"timestamp"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
}

// Result reports a drain pass by item id.
type Result struct {
	Synced    []string `json:"synced"`
	Remaining []string `json:"remaining"`
	Rejected  []string `json:"rejected"`
}

// Queue is safe for concurrent use.
type Queue struct {
	store       Storage
	log         logrus.FieldLogger
	itemTimeout time.Duration
	now         func() time.Time

	mu    sync.Mutex
	items []Item

	group singleflight.Group
}

// New restores any items persisted by a previous process.
func New(store Storage, itemTimeout time.Duration, log logrus.FieldLogger) *Queue {
	q := &Queue{
		store:       store,
		log:         log.WithField("component", "syncqueue"),
		itemTimeout: itemTimeout,
		now:         time.Now,
	}
	if store.Load(StorageKey, &q.items) && len(q.items) > 0 {
		q.log.WithField("pending", len(q.items)).Info("Restored pending sync items")
	}
	return q
}

// Enqueue appends a mutation and persists the queue before returning. On
// a storage error nothing is queued.
func (q *Queue) Enqueue(actionType string, changes ...Change) (Item, error) {
	item := Item{
		ID:         model.NewID("sync"),
		ActionType: actionType,
		Payload:    changes,
		Timestamp:  q.now().UTC(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	next := make([]Item, len(q.items), len(q.items)+1)
	copy(next, q.items)
	next = append(next, item)
	if err := q.store.Save(StorageKey, next); err != nil {
		return Item{}, err
	}
	q.items = next

	q.log.WithFields(logrus.Fields{
		"id":      item.ID,
		"action":  actionType,
		"pending": len(next),
	}).Info("Queued mutation for later sync")
	return item, nil
}

// Reload replaces the in-memory items with what storage holds now, for use
// after the store was restored underneath the queue. It returns the number
// of pending items.
func (q *Queue) Reload() int {
	var items []Item
	q.store.Load(StorageKey, &items)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = items
	return len(items)
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the pending items in replay order.
func (q *Queue) Items() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Item, len(q.items))
	copy(out, q.items)
	return out
}

// Rejected returns the items the backend refused.
func (q *Queue) Rejected() []Item {
	var items []Item
	q.store.Load(RejectedKey, &items)
	return items
}

// Drain replays pending items in order. Concurrent callers share a single
// pass, so no item is sent twice by overlapping drains.
func (q *Queue) Drain(ctx context.Context, r Replayer) (Result, error) {
	v, err, shared := q.group.Do("drain", func() (any, error) {
		return q.drain(ctx, r)
	})
	if shared {
		q.log.Debug("Joined in-flight drain")
	}
	return v.(Result), err
}

func (q *Queue) drain(ctx context.Context, r Replayer) (res Result, err error) {
	res = Result{Synced: []string{}, Rejected: []string{}}
	defer func() { res.Remaining = q.pendingIDs() }()

	for {
		if ctx.Err() != nil {
			return res, nil
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			break
		}
		item := q.items[0]
		q.mu.Unlock()

		applyErr := q.apply(ctx, r, item)
		switch {
		case applyErr == nil:
			if err := q.removeHead(item.ID); err != nil {
				return res, err
			}
			res.Synced = append(res.Synced, item.ID)

		case errors.Is(applyErr, apperror.ErrRemoteRejected):
			q.log.WithError(applyErr).WithField("id", item.ID).Error("Backend rejected queued mutation; moving it aside")
			if err := q.reject(item, applyErr); err != nil {
				return res, err
			}
			res.Rejected = append(res.Rejected, item.ID)
			return res, nil

		default:
			q.log.WithError(applyErr).WithField("id", item.ID).Warn("Sync halted; will retry on next drain")
			q.noteFailure(item.ID, applyErr)
			return res, nil
		}
	}

	if len(res.Synced) > 0 {
		q.log.WithField("synced", len(res.Synced)).Info("Sync queue drained")
	}
	return res, nil
}

func (q *Queue) apply(ctx context.Context, r Replayer, item Item) error {
	if q.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.itemTimeout)
		defer cancel()
	}
	for _, c := range item.Payload {
		var err error
		switch c.Op {
		case OpUpsert:
			err = r.Upsert(ctx, c.Table, c.Records)
		case OpDelete:
			err = r.Delete(ctx, c.Table, c.IDs)
		default:
			err = apperror.RemoteRejected(0, fmt.Sprintf("unknown op %q", c.Op))
		}
		if err != nil {
			if ctx.Err() != nil && apperror.CodeOf(err) == "" {
				return apperror.RemoteUnavailable(err)
			}
			return err
		}
	}
	return nil
}

func (q *Queue) pendingIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, len(q.items))
	for i, it := range q.items {
		ids[i] = it.ID
	}
	return ids
}

// removeHead drops the head item when it is still id.
func (q *Queue) removeHead(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.items[0].ID != id {
		return nil
	}
	next := q.items[1:]
	if err := q.store.Save(StorageKey, next); err != nil {
		return err
	}
	q.items = next
	return nil
}

func (q *Queue) reject(item Item, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var dead []Item
	q.store.Load(RejectedKey, &dead)
	item.Attempts++
	item.LastError = cause.Error()
	if err := q.store.Save(RejectedKey, append(dead, item)); err != nil {
		return err
	}

	if len(q.items) > 0 && q.items[0].ID == item.ID {
		next := q.items[1:]
		if err := q.store.Save(StorageKey, next); err != nil {
			return err
		}
		q.items = next
	}
	return nil
}

func (q *Queue) noteFailure(id string, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.items[0].ID != id {
		return
	}
	next := make([]Item, len(q.items))
	copy(next, q.items)
	next[0].Attempts++
	next[0].LastError = cause.Error()
	if err := q.store.Save(StorageKey, next); err != nil {
		return
	}
	q.items = next
}
