package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"sieve/internal/platform/badgerdb"
	"sieve/internal/platform/config"
	"sieve/pkg/platform/sentinel"
)

type BadgerStoreSuite struct {
	suite.Suite
	store *BadgerStore
	ctx   context.Context
	close func() error
}

func (s *BadgerStoreSuite) SetupTest() {
	db, err := badgerdb.Open(config.BadgerConfig{InMemory: true}, nil)
	s.Require().NoError(err)
	s.Require().NotNil(db)

	s.store = NewBadgerStore(db)
	s.ctx = context.Background()
	s.close = db.Close
}

func (s *BadgerStoreSuite) TearDownTest() {
	s.Require().NoError(s.close())
}

func TestBadgerStoreSuite(t *testing.T) {
	suite.Run(t, new(BadgerStoreSuite))
}

func (s *BadgerStoreSuite) TestRoundTrip() {
	s.Run("resolved and raw are independent", func() {
		s.Require().NoError(s.store.SetResolved(s.ctx, 2, []string{"||resolved.example.org^"}))
		s.Require().NoError(s.store.SetRaw(s.ctx, 2, []string{"!#include extra.txt", "||a.example.org^"}))

		resolved, err := s.store.GetResolved(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal([]string{"||resolved.example.org^"}, resolved)

		raw, err := s.store.GetRaw(s.ctx, 2)
		s.Require().NoError(err)
		s.Equal([]string{"!#include extra.txt", "||a.example.org^"}, raw)
	})

	s.Run("missing content is not found", func() {
		_, err := s.store.GetResolved(s.ctx, 404)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("set replaces previous content", func() {
		s.Require().NoError(s.store.SetResolved(s.ctx, 3, []string{"||old.example.org^"}))
		s.Require().NoError(s.store.SetResolved(s.ctx, 3, []string{"||new.example.org^", "||more.example.org^"}))

		got, err := s.store.GetResolved(s.ctx, 3)
		s.Require().NoError(err)
		s.Equal([]string{"||new.example.org^", "||more.example.org^"}, got)
	})

	s.Run("empty content round-trips", func() {
		s.Require().NoError(s.store.SetResolved(s.ctx, 4, []string{}))

		got, err := s.store.GetResolved(s.ctx, 4)
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *BadgerStoreSuite) TestDelete() {
	s.Run("clears both keyspaces", func() {
		s.Require().NoError(s.store.SetResolved(s.ctx, 2, []string{"||a.example.org^"}))
		s.Require().NoError(s.store.SetRaw(s.ctx, 2, []string{"||a.example.org^"}))

		s.Require().NoError(s.store.Delete(s.ctx, 2))

		_, err := s.store.GetResolved(s.ctx, 2)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.GetRaw(s.ctx, 2)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("deleting missing content is a no-op", func() {
		s.NoError(s.store.Delete(s.ctx, 404))
	})
}
