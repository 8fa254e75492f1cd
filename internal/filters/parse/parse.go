// Package parse extracts version metadata from filter list headers.
//
// Filter lists open with a comment block of "! Key: value" lines (hosts-style
// lists use "# Key: value"). Only that leading block is scanned; the first
// rule line ends the header.
package parse

import (
	"crypto/md5"
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"sieve/internal/filters/models"
	dErrors "sieve/pkg/domain-errors"
)

// defaultExpires is used when a list declares no Expires header: 4 days,
// the conventional default for published lists.
const defaultExpires int64 = 4 * 86400

// timeUpdatedLayouts are tried in order for TimeUpdated / Last modified.
var timeUpdatedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"02 Jan 2006 15:04 MST",
}

// Header parses the metadata block of a filter list. The Version header is
// mandatory; a list without one yields a CodeParseFailure error. All other
// fields are optional.
func Header(lines []string) (*models.FilterMetadata, error) {
	meta := &models.FilterMetadata{Expires: defaultExpires}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		body, ok := commentBody(line)
		if !ok {
			break
		}

		key, value, found := strings.Cut(body, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			meta.Title = value
		case "description":
			meta.Description = value
		case "homepage":
			meta.Homepage = value
		case "version":
			meta.Version = value
		case "expires":
			if secs, ok := parseExpires(value); ok {
				meta.Expires = secs
			}
		case "timeupdated", "last modified", "last-modified":
			if t, ok := parseTimeUpdated(value); ok {
				meta.TimeUpdated = t
			}
		case "diff-path":
			meta.DiffPath = value
		case "checksum":
			meta.Checksum = value
		}
	}

	if meta.Version == "" {
		return nil, dErrors.New(dErrors.CodeParseFailure, "filter list has no version header")
	}
	return meta, nil
}

// ValidateChecksum verifies the list's declared Checksum header: base64 MD5
// of the list with the checksum line and blank lines removed and CR stripped,
// padding ignored on both sides. Lists without the header pass unchecked.
func ValidateChecksum(lines []string) error {
	declared := ""
	checksumIdx := -1
	for i, raw := range lines {
		body, ok := commentBody(strings.TrimSpace(raw))
		if !ok {
			break
		}
		key, value, found := strings.Cut(body, ":")
		if found && strings.EqualFold(strings.TrimSpace(key), "checksum") {
			declared = strings.TrimSpace(value)
			checksumIdx = i
			break
		}
	}
	if checksumIdx == -1 {
		return nil
	}

	var b strings.Builder
	for i, raw := range lines {
		if i == checksumIdx {
			continue
		}
		line := strings.TrimRight(raw, "\r")
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	sum := md5.Sum([]byte(b.String()))
	computed := base64.RawStdEncoding.EncodeToString(sum[:])
	if computed != strings.TrimRight(declared, "=") {
		return dErrors.New(dErrors.CodeParseFailure, "filter list checksum mismatch")
	}
	return nil
}

// commentBody strips the comment marker. ok is false for rule lines, which
// end the header block.
func commentBody(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "!"):
		return strings.TrimSpace(line[1:]), true
	case strings.HasPrefix(line, "# "):
		return strings.TrimSpace(line[2:]), true
	case line == "#":
		return "", true
	default:
		return "", false
	}
}

// parseExpires understands "4 days", "12 hours", "86400" and tolerates
// trailing commentary like "(update frequency)".
func parseExpires(value string) (int64, bool) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}

	unit := int64(1)
	if len(fields) > 1 {
		switch strings.ToLower(strings.TrimSuffix(fields[1], "s")) {
		case "day", "d":
			unit = 86400
		case "hour", "h":
			unit = 3600
		}
	}
	return n * unit, true
}

func parseTimeUpdated(value string) (time.Time, bool) {
	for _, layout := range timeUpdatedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
