// Package historyfile reads and writes rounds as plain text files, one
// file per round named "<index>.txt" with a "left,right" line per pair.
package historyfile

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/coffee/internal/domain/pairing"
	"golang.org/x/sync/errgroup"
)

const (
	fileExt  = ".txt"
	dirPerm  = 0o755
	filePerm = 0o644

	// loadConcurrency caps the number of files parsed at once.
	loadConcurrency = 8
)

// Round is one parsed history file.
type Round struct {
	Index int
	Pairs []pairing.Pair
}

// WriteRound writes pairs as "left,right" lines. Ids that would not
// read back unchanged are refused before anything is written.
func WriteRound(w io.Writer, pairs []pairing.Pair) error {
	for _, p := range pairs {
		for _, id := range []string{p.Left, p.Right} {
			if !storableID(id) {
				return fmt.Errorf("%w: %q", ErrInvalidID, id)
			}
		}
	}
	bw := bufio.NewWriter(w)
	for _, p := range pairs {
		if _, err := bw.WriteString(p.Left + "," + p.Right + "\n"); err != nil {
			return fmt.Errorf("write pair: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush round: %w", err)
	}
	return nil
}

func storableID(id string) bool {
	return id != "" && !strings.ContainsAny(id, ",\r\n") && strings.TrimSpace(id) == id
}

// ReadRound parses "left,right" lines. Blank lines are skipped. The
// repeat flags are not part of the format and come back false.
func ReadRound(r io.Reader) ([]pairing.Pair, error) {
	var pairs []pairing.Pair
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		left, right, ok := strings.Cut(text, ",")
		if !ok || left == "" || right == "" || strings.Contains(right, ",") {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedLine, line, text)
		}
		pairs = append(pairs, pairing.Pair{Left: left, Right: right})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read round: %w", err)
	}
	return pairs, nil
}

// FileName returns the file name used for round index.
func FileName(index int) string {
	return strconv.Itoa(index) + fileExt
}

// WriteRoundFile writes a round to dir/<index>.txt, creating dir if
// needed. The file is written to a temp name and renamed into place.
func WriteRoundFile(dir string, index int, pairs []pairing.Pair) (string, error) {
	if index < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("create history dir: %w", err)
	}
	path := filepath.Join(dir, FileName(index))
	tmp, err := os.CreateTemp(dir, FileName(index)+".*")
	if err != nil {
		return "", fmt.Errorf("create round file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := WriteRound(tmp, pairs); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close round file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return "", fmt.Errorf("chmod round file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename round file: %w", err)
	}
	return path, nil
}

// ReadRoundFile parses a single round file.
func ReadRoundFile(path string) ([]pairing.Pair, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open round file: %w", err)
	}
	defer func() { _ = f.Close() }()

	pairs, err := ReadRound(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return pairs, nil
}

// LoadDir parses every "<n>.txt" file in dir concurrently and returns the
// rounds ordered by index. Other files are ignored. A missing directory
// yields no rounds.
func LoadDir(ctx context.Context, dir string) ([]Round, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history dir: %w", err)
	}

	var indexes []int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(e.Name(), fileExt))
		if err != nil || idx < 0 {
			continue
		}
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	rounds := make([]Round, len(indexes))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, idx := range indexes {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			pairs, err := ReadRoundFile(filepath.Join(dir, FileName(idx)))
			if err != nil {
				return err
			}
			rounds[i] = Round{Index: idx, Pairs: pairs}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rounds, nil
}

// Replay records every pair of rounds into history in order and returns
// the number of pairs replayed.
func Replay(rounds []Round, history *pairing.History) int {
	n := 0
	for _, r := range rounds {
		for _, p := range r.Pairs {
			history.Record(p.Left, p.Right)
			n++
		}
	}
	return n
}
