package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sieve/internal/platform/config"
)

const basePatch = `--- list.txt
+++ list.txt
@@ -1,4 +1,5 @@
 ! Title: Base Filter
-! Version: 1.0.0
+! Version: 1.0.1
 ||ads.example.org^
 ||tracker.example.org^
+||banner.example.net^
`

var baseCurrent = []string{
	"! Title: Base Filter",
	"! Version: 1.0.0",
	"||ads.example.org^",
	"||tracker.example.org^",
}

var basePatched = []string{
	"! Title: Base Filter",
	"! Version: 1.0.1",
	"||ads.example.org^",
	"||tracker.example.org^",
	"||banner.example.net^",
}

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(config.FetchConfig{
		Timeout:       5 * time.Second,
		MaxBodyBytes:  1 << 20,
		RatePerSecond: 1000,
		UserAgent:     "sieve-test/1.0",
	})
	return c, srv
}

type FetchSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *FetchSuite) SetupSuite() {
	s.ctx = context.Background()
}

func TestFetchSuite(t *testing.T) {
	suite.Run(t, new(FetchSuite))
}

// =============================================================================
// Download Tests
// =============================================================================

func (s *FetchSuite) TestDownloadFull() {
	s.Run("downloads and splits lines", func() {
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.Equal("sieve-test/1.0", r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte("! Version: 1.0.0\r\n||ads.example.org^\n"))
		}))
		defer srv.Close()

		lines, err := c.DownloadFull(s.ctx, srv.URL+"/list.txt")
		s.Require().NoError(err)
		s.Equal([]string{"! Version: 1.0.0", "||ads.example.org^"}, lines)
	})

	s.Run("missing list is an error", func() {
		c, srv := testClient(http.NotFoundHandler())
		defer srv.Close()

		_, err := c.DownloadFull(s.ctx, srv.URL+"/gone.txt")
		s.Error(err)
	})

	s.Run("server error is an error", func() {
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := c.DownloadFull(s.ctx, srv.URL+"/list.txt")
		s.Error(err)
	})

	s.Run("oversized body is rejected", func() {
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(make([]byte, 2<<20))
		}))
		defer srv.Close()

		_, err := c.DownloadFull(s.ctx, srv.URL+"/huge.txt")
		s.Error(err)
		s.Contains(err.Error(), "exceeds")
	})
}

func (s *FetchSuite) TestSplitLines() {
	s.Run("empty content yields no lines", func() {
		s.Empty(SplitLines(""))
	})

	s.Run("trailing newline does not add an empty line", func() {
		s.Equal([]string{"a", "b"}, SplitLines("a\nb\n"))
	})

	s.Run("interior blank lines survive", func() {
		s.Equal([]string{"a", "", "b"}, SplitLines("a\n\nb"))
	})
}

func (s *FetchSuite) TestResolveRelative() {
	s.Run("resolves parent-relative paths", func() {
		got, err := ResolveRelative("https://cdn.example.org/lists/base.txt", "../patches/base.patch")
		s.Require().NoError(err)
		s.Equal("https://cdn.example.org/patches/base.patch", got)
	})

	s.Run("absolute refs pass through", func() {
		got, err := ResolveRelative("https://cdn.example.org/lists/base.txt", "https://other.example.org/p.patch")
		s.Require().NoError(err)
		s.Equal("https://other.example.org/p.patch", got)
	})
}

// =============================================================================
// Patch Tests
// =============================================================================

func (s *FetchSuite) TestApplyPatch() {
	s.Run("applies a published patch", func() {
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(basePatch))
		}))
		defer srv.Close()

		updated, ok, err := c.ApplyPatch(s.ctx, srv.URL+"/base.patch", baseCurrent)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(basePatched, updated)
	})

	s.Run("validates the diff directive", func() {
		feed := "diff checksum:25c7a8ae4b117f9ab4f65cb2701614e78e9d8409 lines:9\n" + basePatch
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(feed))
		}))
		defer srv.Close()

		updated, ok, err := c.ApplyPatch(s.ctx, srv.URL+"/base.patch", baseCurrent)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(basePatched, updated)
	})

	s.Run("rejects a wrong directive checksum", func() {
		feed := "diff checksum:0000000000000000000000000000000000000000 lines:9\n" + basePatch
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(feed))
		}))
		defer srv.Close()

		_, _, err := c.ApplyPatch(s.ctx, srv.URL+"/base.patch", baseCurrent)
		s.Error(err)
		s.Contains(err.Error(), "checksum mismatch")
	})

	s.Run("rejects a wrong directive line count", func() {
		feed := "diff lines:3\n" + basePatch
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(feed))
		}))
		defer srv.Close()

		_, _, err := c.ApplyPatch(s.ctx, srv.URL+"/base.patch", baseCurrent)
		s.Error(err)
		s.Contains(err.Error(), "lines")
	})

	s.Run("missing feed means no patch", func() {
		c, srv := testClient(http.NotFoundHandler())
		defer srv.Close()

		_, ok, err := c.ApplyPatch(s.ctx, srv.URL+"/base.patch", baseCurrent)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("empty feed means no patch", func() {
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("\n"))
		}))
		defer srv.Close()

		_, ok, err := c.ApplyPatch(s.ctx, srv.URL+"/base.patch", baseCurrent)
		s.NoError(err)
		s.False(ok)
	})

	s.Run("hunk against changed content fails", func() {
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(basePatch))
		}))
		defer srv.Close()

		drifted := []string{
			"! Title: Base Filter",
			"! Version: 0.9.9",
			"||ads.example.org^",
			"||tracker.example.org^",
		}
		_, _, err := c.ApplyPatch(s.ctx, srv.URL+"/base.patch", drifted)
		s.Error(err)
		s.Contains(err.Error(), "mismatch")
	})

	s.Run("garbage feed fails", func() {
		c, srv := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not a diff at all"))
		}))
		defer srv.Close()

		_, _, err := c.ApplyPatch(s.ctx, srv.URL+"/base.patch", baseCurrent)
		s.Error(err)
	})
}
