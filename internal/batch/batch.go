// Package batch chunks title lists so a single editor-count query never
// exceeds the replica's practical IN-clause size.
package batch

import "fmt"

// Split partitions keys into consecutive chunks of at most size elements.
// Order is preserved and every key lands in exactly one chunk; the chunks
// alias the input slice. An empty input yields no chunks.
func Split(keys []string, size int) ([][]string, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", size)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	chunks := make([][]string, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks, nil
}
