package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "sieve/pkg/domain-errors"
)

type ParseSuite struct {
	suite.Suite
}

func TestParseSuite(t *testing.T) {
	suite.Run(t, new(ParseSuite))
}

// =============================================================================
// Header Tests
// =============================================================================

func (s *ParseSuite) TestHeader() {
	s.Run("parses a full metadata block", func() {
		meta, err := Header([]string{
			"! Title: Base Filter",
			"! Description: Blocks ads on common sites",
			"! Homepage: https://example.org/base",
			"! Version: 2.0.91.0",
			"! Expires: 4 days (update frequency)",
			"! TimeUpdated: 2025-06-01T12:30:00+00:00",
			"! Diff-Path: ../patches/base/base-m-28378212-60.patch",
			"||ads.example.org^",
		})
		s.Require().NoError(err)
		s.Equal("Base Filter", meta.Title)
		s.Equal("Blocks ads on common sites", meta.Description)
		s.Equal("https://example.org/base", meta.Homepage)
		s.Equal("2.0.91.0", meta.Version)
		s.Equal(int64(4*86400), meta.Expires)
		s.Equal(time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), meta.TimeUpdated.UTC())
		s.Equal("../patches/base/base-m-28378212-60.patch", meta.DiffPath)
	})

	s.Run("missing version header is a parse failure", func() {
		_, err := Header([]string{
			"! Title: No Version Here",
			"||ads.example.org^",
		})
		s.Error(err)
		s.True(dErrors.Is(err, dErrors.CodeParseFailure))
	})

	s.Run("header block ends at the first rule line", func() {
		_, err := Header([]string{
			"! Title: Broken",
			"||ads.example.org^",
			"! Version: 1.0.0",
		})
		s.Error(err)
	})

	s.Run("defaults expires to four days when absent", func() {
		meta, err := Header([]string{"! Version: 1.0.0"})
		s.Require().NoError(err)
		s.Equal(int64(4*86400), meta.Expires)
	})

	s.Run("parses hours and plain second expires", func() {
		meta, err := Header([]string{"! Version: 1.0.0", "! Expires: 12 hours"})
		s.Require().NoError(err)
		s.Equal(int64(12*3600), meta.Expires)

		meta, err = Header([]string{"! Version: 1.0.0", "! Expires: 3600"})
		s.Require().NoError(err)
		s.Equal(int64(3600), meta.Expires)
	})

	s.Run("unparseable expires keeps the default", func() {
		meta, err := Header([]string{"! Version: 1.0.0", "! Expires: soonish"})
		s.Require().NoError(err)
		s.Equal(int64(4*86400), meta.Expires)
	})

	s.Run("accepts last modified in legacy layout", func() {
		meta, err := Header([]string{
			"! Version: 1.0.0",
			"! Last modified: 02 Mar 2025 08:31 UTC",
		})
		s.Require().NoError(err)
		s.Equal(time.Date(2025, 3, 2, 8, 31, 0, 0, time.UTC), meta.TimeUpdated.UTC())
	})

	s.Run("parses hosts-style hash comments", func() {
		meta, err := Header([]string{
			"# Title: Hosts List",
			"# Version: 7",
			"0.0.0.0 ads.example.org",
		})
		s.Require().NoError(err)
		s.Equal("Hosts List", meta.Title)
		s.Equal("7", meta.Version)
	})

	s.Run("blank lines inside the header are tolerated", func() {
		meta, err := Header([]string{
			"! Title: Spaced",
			"",
			"! Version: 3.1",
		})
		s.Require().NoError(err)
		s.Equal("3.1", meta.Version)
	})
}

// =============================================================================
// Checksum Tests
// =============================================================================

func (s *ParseSuite) TestValidateChecksum() {
	s.Run("accepts a matching checksum", func() {
		err := ValidateChecksum([]string{
			"! Checksum: BR5bDrELhJR3aiM7YVH7mQ",
			"! Version: 2.0.91.0",
			"||example.org^",
		})
		s.NoError(err)
	})

	s.Run("accepts declared padding", func() {
		err := ValidateChecksum([]string{
			"! Checksum: BR5bDrELhJR3aiM7YVH7mQ==",
			"! Version: 2.0.91.0",
			"||example.org^",
		})
		s.NoError(err)
	})

	s.Run("ignores blank lines and carriage returns", func() {
		err := ValidateChecksum([]string{
			"! Checksum: nXZpMtTG3uwx+mM4+EvqoQ",
			"! Title: Test List",
			"",
			"! Version: 2.0.91.0\r",
			"||example.org^",
		})
		s.NoError(err)
	})

	s.Run("rejects a tampered list", func() {
		err := ValidateChecksum([]string{
			"! Checksum: BR5bDrELhJR3aiM7YVH7mQ",
			"! Version: 2.0.91.0",
			"||evil.example.org^",
		})
		s.Error(err)
		s.True(dErrors.Is(err, dErrors.CodeParseFailure))
	})

	s.Run("passes lists without a checksum header", func() {
		err := ValidateChecksum([]string{
			"! Version: 2.0.91.0",
			"||example.org^",
		})
		s.NoError(err)
	})

	s.Run("ignores checksum-looking lines outside the header block", func() {
		err := ValidateChecksum([]string{
			"! Version: 2.0.91.0",
			"||example.org^",
			"! Checksum: bogus",
		})
		s.NoError(err)
	})
}
