package ingest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docsage/docsage-api/internal/domain/model"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits document text into overlapping fixed-size fragments. The
// overlap keeps sentences that straddle a boundary retrievable from both
// sides.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker; non-positive size or a negative/oversized
// overlap falls back to the defaults.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits text into fragments with ids of the form <docID>_chunk_<i>.
// Whitespace-only input yields no fragments.
func (c *Chunker) Chunk(docID, text string) []model.Fragment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	stride := c.size - c.overlap

	var fragments []model.Fragment
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			fragments = append(fragments, model.Fragment{
				ID:      fmt.Sprintf("%s_chunk_%d", docID, len(fragments)),
				Content: content,
				Metadata: map[string]string{
					"chunk_index": strconv.Itoa(len(fragments)),
					"start_char":  strconv.Itoa(start),
					"end_char":    strconv.Itoa(end),
				},
			})
		}
		if end == len(runes) {
			break
		}
	}
	return fragments
}
