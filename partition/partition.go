// Package partition splits sorted key spaces into the bounded,
// contiguous chunks that become job input ranges. It is pure: no I/O,
// no state.
package partition

import "fmt"

// WorkChunk is a contiguous inclusive range [Start, End] of sorted
// numeric keys, assigned to exactly one job.
type WorkChunk struct {
	Start int64
	End   int64
}

// String renders the chunk in the conventional "start:end" input-id form.
func (c WorkChunk) String() string {
	return fmt.Sprintf("%d:%d", c.Start, c.End)
}

// Split partitions keys into chunks of size chunkSize. Keys must be
// sorted ascending and distinct. Every chunk except the last holds
// exactly chunkSize keys; the last absorbs the remainder so the total
// count is ceil(len(keys)/chunkSize) and no undersized chunk is left
// dangling beyond it. An empty key slice yields no chunks.
func Split(keys []int64, chunkSize int) ([]WorkChunk, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("partition: chunk size must be >= 1, got %d", chunkSize)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	chunks := make([]WorkChunk, 0, (len(keys)+chunkSize-1)/chunkSize)
	for lo := 0; lo < len(keys); lo += chunkSize {
		hi := lo + chunkSize
		if hi > len(keys) {
			hi = len(keys)
		}
		chunks = append(chunks, WorkChunk{Start: keys[lo], End: keys[hi-1]})
	}
	return chunks, nil
}
