// Package localstore is the durable key/value backstop every write lands in
// before anything is attempted remotely. Values are JSON envelopes kept in a
// sqlite table, with decoded payloads held in a short-lived read cache.
package localstore

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schedule-sync-backend/internal/apperror"
	"schedule-sync-backend/internal/db"
)

type envelope struct {
	Version   string          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Backup is the export format of the whole store.
type Backup struct {
	ExportDate time.Time                  `json:"exportDate"`
	Version    string                     `json:"version"`
	Data       map[string]json.RawMessage `json:"data"`
}

// Stats summarizes the store's footprint.
type Stats struct {
	Entries int64 `json:"entries"`
	Bytes   int64 `json:"bytes"`
}

// Store is a key/value store over a gorm database.
type Store struct {
	db      *gorm.DB
	cache   *cache.Cache
	version string
	log     logrus.FieldLogger
	now     func() time.Time

	hookMu  sync.RWMutex
	onError func(key string, err error)
}

// New creates a Store. The db must already carry the kv_entries table
// (see db.InitLocal).
func New(gdb *gorm.DB, version string, cacheTTL time.Duration, log logrus.FieldLogger) *Store {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Store{
		db:      gdb,
		cache:   cache.New(cacheTTL, 2*cacheTTL),
		version: version,
		log:     log.WithField("component", "localstore"),
		now:     time.Now,
	}
}

// SetErrorHook registers a callback invoked for every internal storage
// error, in addition to the error being logged and returned.
func (s *Store) SetErrorHook(fn func(key string, err error)) {
	s.hookMu.Lock()
	s.onError = fn
	s.hookMu.Unlock()
}

func (s *Store) fail(key string, err error) error {
	s.log.WithError(err).WithField("key", key).Error("Local storage operation failed")
	s.hookMu.RLock()
	hook := s.onError
	s.hookMu.RUnlock()
	if hook != nil {
		hook(key, err)
	}
	return apperror.StorageFailure(err, key)
}

// Save serializes value under key and writes it before returning.
func (s *Store) Save(key string, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.fail(key, fmt.Errorf("panic while saving: %v", r))
		}
	}()

	data, err := json.Marshal(value)
	if err != nil {
		return s.fail(key, fmt.Errorf("failed to marshal value: %w", err))
	}
	return s.saveRaw(key, data)
}

func (s *Store) saveRaw(key string, data json.RawMessage) error {
	now := s.now().UTC()
	body, err := json.Marshal(envelope{Version: s.version, Timestamp: now, Data: data})
	if err != nil {
		return s.fail(key, fmt.Errorf("failed to marshal envelope: %w", err))
	}

	entry := db.KVEntry{Key: key, Value: body, Version: s.version, UpdatedAt: now}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "version", "updated_at"}),
	}).Create(&entry).Error; err != nil {
		s.cache.Delete(key)
		return s.fail(key, err)
	}

	s.cache.SetDefault(key, []byte(data))
	return nil
}

// raw returns the payload stored under key.
func (s *Store) raw(key string) ([]byte, bool) {
	if v, ok := s.cache.Get(key); ok {
		return v.([]byte), true
	}

	var found []db.KVEntry
	res := s.db.Where(`"key" = ?`, key).Limit(1).Find(&found)
	if res.Error != nil {
		s.log.WithError(res.Error).WithField("key", key).Warn("Local load failed; using default")
		return nil, false
	}
	if res.RowsAffected == 0 {
		return nil, false
	}
	entry := found[0]

	var env envelope
	if err := json.Unmarshal(entry.Value, &env); err != nil || len(env.Data) == 0 {
		s.log.WithField("key", key).Warn("Stored value is not an envelope; passing it through")
		data := entry.Value
		s.cache.SetDefault(key, data)
		return data, true
	}
	if env.Version != s.version {
		s.log.WithFields(logrus.Fields{
			"key":      key,
			"expected": s.version,
			"found":    env.Version,
		}).Warn("Schema version mismatch; passing data through unmigrated")
	}

	data := []byte(env.Data)
	s.cache.SetDefault(key, data)
	return data, true
}

// Load decodes the value stored under key into dest, which must be a
// non-nil pointer. It returns false and leaves dest untouched when the key
// is missing or the stored value cannot be decoded.
func (s *Store) Load(key string, dest any) bool {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false
	}

	data, ok := s.raw(key)
	if !ok {
		return false
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Could not decode stored value; using default")
		return false
	}
	rv.Elem().Set(fresh.Elem())
	return true
}

// keys lists stored keys in key order.
func (s *Store) keys() ([]string, error) {
	var keys []string
	if err := s.db.Model(&db.KVEntry{}).Order(`"key"`).Pluck("key", &keys).Error; err != nil {
		return nil, s.fail("*", err)
	}
	return keys, nil
}

// Export returns every stored payload keyed by key.
func (s *Store) Export() (*Backup, error) {
	keys, err := s.keys()
	if err != nil {
		return nil, err
	}
	out := &Backup{
		ExportDate: s.now().UTC(),
		Version:    s.version,
		Data:       make(map[string]json.RawMessage, len(keys)),
	}
	for _, k := range keys {
		if data, ok := s.raw(k); ok {
			out.Data[k] = json.RawMessage(data)
		}
	}
	return out, nil
}

// Import replaces the store's contents with a backup. Every entry is
// checked before anything is written, and the replacement happens in one
// transaction, so a rejected or failed import leaves the store as it was.
func (s *Store) Import(b *Backup) error {
	if b == nil || b.Data == nil {
		return apperror.Validation("Invalid export format")
	}
	now := s.now().UTC()
	entries := make([]db.KVEntry, 0, len(b.Data))
	for _, k := range sortedKeys(b.Data) {
		v := b.Data[k]
		if k == "" {
			return apperror.Validation("Backup contains an empty key")
		}
		if !json.Valid(v) {
			return apperror.Validation(fmt.Sprintf("Backup entry %q is not valid JSON", k))
		}
		body, err := json.Marshal(envelope{Version: s.version, Timestamp: now, Data: v})
		if err != nil {
			return s.fail(k, fmt.Errorf("failed to marshal envelope: %w", err))
		}
		entries = append(entries, db.KVEntry{Key: k, Value: body, Version: s.version, UpdatedAt: now})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&db.KVEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(&entries, 100).Error
	})
	s.cache.Flush()
	if err != nil {
		return s.fail("*", err)
	}
	s.log.WithField("entries", len(entries)).Info("Local store replaced from backup")
	return nil
}

// Stats reports the number of entries and their encoded size.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	err := s.db.Model(&db.KVEntry{}).
		Select("COUNT(*) AS entries, COALESCE(SUM(LENGTH(value)), 0) AS bytes").
		Scan(&st).Error
	if err != nil {
		return Stats{}, s.fail("*", err)
	}
	return st, nil
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
