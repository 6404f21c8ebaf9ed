package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"musdScope/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs.jsonl")
	s := NewJsonlStorage(path)

	if err := s.PutLogBatch([]model.LogRecord{{BlockNumber: 1, LogIndex: 0}}); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := s.PutLogBatch([]model.LogRecord{{BlockNumber: 2, LogIndex: 4}, {BlockNumber: 2, LogIndex: 5}}); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := s.PutLogBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var blocks []uint64
	err = ReadLines(f, func(_ int, line []byte) error {
		var rec model.LogRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		blocks = append(blocks, rec.BlockNumber)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(blocks) != 3 || blocks[0] != 1 || blocks[2] != 2 {
		t.Fatalf("unexpected blocks: %v", blocks)
	}
}

func TestWriterTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	for i := 0; i < 2; i++ {
		w, err := NewWriter(path, false)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if err := w.Write(map[string]int{"run": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != `{"run":1}` {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestReadLinesSkipsBlankAndNumbers(t *testing.T) {
	var seen []int
	err := ReadLines(strings.NewReader("a\n\n  \nb\n"), func(n int, line []byte) error {
		seen = append(seen, n)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 4 {
		t.Fatalf("unexpected line numbers: %v", seen)
	}
}
