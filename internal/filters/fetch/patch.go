package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// patchDirective is the optional first line of a patch feed:
// "diff checksum:<sha1-hex> lines:<n>". checksum covers the patched result,
// lines counts the diff body lines that follow.
type patchDirective struct {
	checksum string
	lines    int
	hasLines bool
}

// ApplyPatch fetches the patch feed at patchURL and applies it to current.
// ok is false when no patch is published there (404 or empty body); the
// caller then falls back to a full download. Hunk mismatches, malformed
// feeds and directive validation failures are errors.
func (c *Client) ApplyPatch(ctx context.Context, patchURL string, current []string) ([]string, bool, error) {
	body, found, err := c.get(ctx, patchURL)
	if err != nil {
		return nil, false, err
	}
	if !found || strings.TrimSpace(body) == "" {
		c.logger.DebugContext(ctx, "no patch published", "url", patchURL)
		return nil, false, nil
	}

	updated, err := applyPatchBody(current, body)
	if err != nil {
		return nil, false, fmt.Errorf("apply patch from %s: %w", patchURL, err)
	}
	return updated, true, nil
}

func applyPatchBody(current []string, body string) ([]string, error) {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	directive, diffBody := splitDirective(body)

	if directive != nil && directive.hasLines {
		if got := countLines(diffBody); got != directive.lines {
			return nil, fmt.Errorf("patch directive declares %d lines, body has %d", directive.lines, got)
		}
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(diffBody)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse unified diff: %w", err)
	}
	if len(fileDiffs) == 0 {
		return nil, fmt.Errorf("patch contains no file diff")
	}

	updated, err := applyHunks(current, fileDiffs[0])
	if err != nil {
		return nil, err
	}

	if directive != nil && directive.checksum != "" {
		sum := sha1.Sum([]byte(strings.Join(updated, "\n") + "\n"))
		if !strings.EqualFold(hex.EncodeToString(sum[:]), directive.checksum) {
			return nil, fmt.Errorf("patched content checksum mismatch")
		}
	}
	return updated, nil
}

// splitDirective peels a leading "diff ..." directive off the feed, if any.
func splitDirective(body string) (*patchDirective, string) {
	head, rest, _ := strings.Cut(body, "\n")
	fields := strings.Fields(head)
	if len(fields) == 0 || fields[0] != "diff" {
		return nil, body
	}

	d := &patchDirective{}
	for _, f := range fields[1:] {
		key, value, found := strings.Cut(f, ":")
		if !found {
			continue
		}
		switch key {
		case "checksum":
			d.checksum = value
		case "lines":
			if n, err := strconv.Atoi(value); err == nil {
				d.lines = n
				d.hasLines = true
			}
		}
	}
	return d, rest
}

func countLines(s string) int {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// applyHunks replays a file diff over the original lines, verifying that
// every context and deletion line matches the original. Unified diff
// convention: a pure-insert hunk's start line addresses the line it inserts
// after, all other hunks address their first original line.
func applyHunks(orig []string, fd *diff.FileDiff) ([]string, error) {
	out := make([]string, 0, len(orig))
	origIdx := 0

	for _, hunk := range fd.Hunks {
		start := int(hunk.OrigStartLine) - 1
		if hunk.OrigLines == 0 {
			start = int(hunk.OrigStartLine)
		}
		if start < origIdx || start > len(orig) {
			return nil, fmt.Errorf("hunk at original line %d is out of range", hunk.OrigStartLine)
		}

		out = append(out, orig[origIdx:start]...)
		origIdx = start

		body := strings.TrimSuffix(string(hunk.Body), "\n")
		for _, line := range strings.Split(body, "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				out = append(out, line[1:])
			case strings.HasPrefix(line, "-"):
				if origIdx >= len(orig) || orig[origIdx] != line[1:] {
					return nil, fmt.Errorf("deleted line mismatch at original line %d", origIdx+1)
				}
				origIdx++
			case strings.HasPrefix(line, " "):
				if origIdx >= len(orig) || orig[origIdx] != line[1:] {
					return nil, fmt.Errorf("context mismatch at original line %d", origIdx+1)
				}
				out = append(out, orig[origIdx])
				origIdx++
			case line == "":
				// some diff generators emit bare empty lines for empty context
				if origIdx >= len(orig) || orig[origIdx] != "" {
					return nil, fmt.Errorf("context mismatch at original line %d", origIdx+1)
				}
				out = append(out, "")
				origIdx++
			case strings.HasPrefix(line, "\\"):
				// "\ No newline at end of file"
			default:
				return nil, fmt.Errorf("malformed patch line %q", line)
			}
		}
	}

	out = append(out, orig[origIdx:]...)
	return out, nil
}
