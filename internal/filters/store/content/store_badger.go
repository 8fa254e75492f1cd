package content

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"sieve/internal/filters/models"
	"sieve/pkg/platform/sentinel"
)

const (
	resolvedPrefix = "content:resolved:"
	rawPrefix      = "content:raw:"
)

// BadgerStore persists filter content in BadgerDB, the durable local cache
// for deployments that must survive restarts without refetching every list.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore constructs a Badger-backed content store.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) GetResolved(_ context.Context, id models.FilterID) ([]string, error) {
	return s.get(resolvedKey(id))
}

func (s *BadgerStore) SetResolved(_ context.Context, id models.FilterID, lines []string) error {
	return s.set(resolvedKey(id), lines)
}

func (s *BadgerStore) GetRaw(_ context.Context, id models.FilterID) ([]string, error) {
	return s.get(rawKey(id))
}

func (s *BadgerStore) SetRaw(_ context.Context, id models.FilterID, lines []string) error {
	return s.set(rawKey(id), lines)
}

// Delete removes both keyspaces' content for one filter in one transaction.
func (s *BadgerStore) Delete(_ context.Context, id models.FilterID) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(resolvedKey(id)); err != nil {
			return err
		}
		return txn.Delete(rawKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete content for filter %s: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) get(key []byte) ([]string, error) {
	var lines []string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			lines = decodeLines(val)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("content %s: %w", key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("read content %s: %w", key, err)
	}
	return lines, nil
}

func (s *BadgerStore) set(key []byte, lines []string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encodeLines(lines))
	})
	if err != nil {
		return fmt.Errorf("write content %s: %w", key, err)
	}
	return nil
}

func resolvedKey(id models.FilterID) []byte {
	return []byte(resolvedPrefix + id.String())
}

func rawKey(id models.FilterID) []byte {
	return []byte(rawPrefix + id.String())
}

func encodeLines(lines []string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

func decodeLines(val []byte) []string {
	if len(val) == 0 {
		return []string{}
	}
	return strings.Split(string(val), "\n")
}
