package buffer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotPending is returned when completing an item that is no longer queued.
var ErrNotPending = errors.New("catch-up item is not pending")

// Store persists pending projection catch-ups in BoltDB so they survive a
// restart. Items are keyed by account id.
type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "catchup"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: []byte(bucket),
		now:    time.Now,
	}, nil
}

// Schedule queues a catch-up for the account, merging with a pending one.
func (s *Store) Schedule(accountID string, projections []string) (Item, error) {
	if s == nil || s.db == nil {
		return Item{}, bolt.ErrDatabaseNotOpen
	}
	if accountID == "" {
		return Item{}, errors.New("account id is required")
	}

	var item Item
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		now := s.now().UTC()
		if raw := b.Get([]byte(accountID)); raw != nil {
			if err := json.Unmarshal(raw, &item); err != nil {
				return err
			}
		} else {
			item = Item{AccountID: accountID, EnqueuedAt: now}
		}
		item.merge(projections, now)
		return put(b, item)
	})
	return item, err
}

// Get returns the pending item for the account.
func (s *Store) Get(accountID string) (Item, bool, error) {
	if s == nil || s.db == nil {
		return Item{}, false, bolt.ErrDatabaseNotOpen
	}
	var (
		item  Item
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(accountID))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &item)
	})
	return item, found, err
}

// GetBatch returns up to limit items, oldest update first, without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(_, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return nil
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(items, func(a, b Item) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Complete removes the item if nothing was merged into it since it was read.
// ErrNotPending means the item changed or is gone and must not be dropped.
func (s *Store) Complete(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		raw := b.Get([]byte(item.AccountID))
		if raw == nil {
			return ErrNotPending
		}
		var current Item
		if err := json.Unmarshal(raw, &current); err != nil {
			return err
		}
		if current.Version != item.Version {
			return ErrNotPending
		}
		return b.Delete([]byte(item.AccountID))
	})
}

// Fail records a failed attempt. Items that reached maxRetry are dropped and
// reported with dropped=true.
func (s *Store) Fail(item Item, cause error, maxRetry int) (dropped bool, err error) {
	if s == nil || s.db == nil {
		return false, bolt.ErrDatabaseNotOpen
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		raw := b.Get([]byte(item.AccountID))
		if raw == nil {
			return nil
		}
		var current Item
		if err := json.Unmarshal(raw, &current); err != nil {
			return err
		}
		current.Retries++
		current.UpdatedAt = s.now().UTC()
		if cause != nil {
			current.LastError = cause.Error()
		}
		if maxRetry > 0 && current.Retries >= maxRetry {
			dropped = true
			return b.Delete([]byte(item.AccountID))
		}
		return put(b, current)
	})
	return dropped, err
}

// Size returns the number of pending items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup removes items not touched since olderThan and returns how many.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			if item.UpdatedAt.Before(olderThan) {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// Ping reports whether the database is open.
func (s *Store) Ping() error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(s.bucket) == nil {
			return bolt.ErrBucketNotFound
		}
		return nil
	})
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

func put(b *bolt.Bucket, item Item) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return b.Put([]byte(item.AccountID), payload)
}
