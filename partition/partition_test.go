package partition_test

import (
	"testing"

	"github.com/zzygyx9119/ensembl-pipeline/partition"
)

func sequential(n int) []int64 {
	keys := make([]int64, n)
	for i := range keys {
		keys[i] = int64(i + 1)
	}
	return keys
}

func TestSplit_ExactAndRemainder(t *testing.T) {
	chunks, err := partition.Split(sequential(23), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []partition.WorkChunk{
		{Start: 1, End: 10},
		{Start: 11, End: 20},
		{Start: 21, End: 23},
	}
	if len(chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(want))
	}
	for i, c := range chunks {
		if c != want[i] {
			t.Errorf("chunk %d = %v, want %v", i, c, want[i])
		}
	}
	if got := chunks[2].String(); got != "21:23" {
		t.Errorf("last chunk input id = %q, want %q", got, "21:23")
	}
}

func TestSplit_CoversAllKeysWithoutGaps(t *testing.T) {
	for _, tc := range []struct {
		n, c int
	}{
		{0, 1}, {1, 1}, {1, 5}, {5, 5}, {6, 5}, {100, 7}, {99, 100},
	} {
		keys := sequential(tc.n)
		chunks, err := partition.Split(keys, tc.c)
		if err != nil {
			t.Fatalf("n=%d c=%d: unexpected error: %v", tc.n, tc.c, err)
		}

		wantChunks := (tc.n + tc.c - 1) / tc.c
		if len(chunks) != wantChunks {
			t.Errorf("n=%d c=%d: got %d chunks, want %d", tc.n, tc.c, len(chunks), wantChunks)
		}

		total := 0
		for i, ch := range chunks {
			if ch.End < ch.Start {
				t.Errorf("n=%d c=%d: chunk %d inverted: %v", tc.n, tc.c, i, ch)
			}
			if i > 0 && ch.Start != chunks[i-1].End+1 {
				t.Errorf("n=%d c=%d: gap or overlap between chunk %d and %d", tc.n, tc.c, i-1, i)
			}
			total += int(ch.End - ch.Start + 1)
		}
		if total != tc.n {
			t.Errorf("n=%d c=%d: chunks cover %d keys, want %d", tc.n, tc.c, total, tc.n)
		}
		if tc.n > 0 {
			if chunks[0].Start != 1 || chunks[len(chunks)-1].End != int64(tc.n) {
				t.Errorf("n=%d c=%d: chunks do not span full key range", tc.n, tc.c)
			}
		}
	}
}

func TestSplit_AllButLastExactlyChunkSize(t *testing.T) {
	chunks, err := partition.Split(sequential(47), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, ch := range chunks[:len(chunks)-1] {
		if size := ch.End - ch.Start + 1; size != 10 {
			t.Errorf("chunk %d has %d keys, want 10", i, size)
		}
	}
	last := chunks[len(chunks)-1]
	if size := last.End - last.Start + 1; size != 7 {
		t.Errorf("last chunk has %d keys, want 7", size)
	}
}

func TestSplit_InvalidChunkSize(t *testing.T) {
	if _, err := partition.Split(sequential(3), 0); err == nil {
		t.Fatal("expected error for chunk size 0")
	}
	if _, err := partition.Split(sequential(3), -1); err == nil {
		t.Fatal("expected error for negative chunk size")
	}
}
