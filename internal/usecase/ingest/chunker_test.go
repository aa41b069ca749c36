package ingest

import (
	"strings"
	"testing"
)

func TestChunk_EmptyText(t *testing.T) {
	chunker := NewChunker(100, 20)
	if got := chunker.Chunk("1", "   \n\t  "); got != nil {
		t.Errorf("expected no fragments for blank text, got %d", len(got))
	}
}

func TestChunk_SingleFragment(t *testing.T) {
	chunker := NewChunker(100, 20)
	fragments := chunker.Chunk("7", "short document")

	if len(fragments) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(fragments))
	}
	if fragments[0].ID != "7_chunk_0" {
		t.Errorf("unexpected fragment id: %s", fragments[0].ID)
	}
	if fragments[0].Content != "short document" {
		t.Errorf("unexpected content: %q", fragments[0].Content)
	}
}

func TestChunk_OverlapAndIDs(t *testing.T) {
	text := strings.Repeat("abcdefghij", 30) // 300 chars
	chunker := NewChunker(100, 20)

	fragments := chunker.Chunk("doc", text)

	// stride 80: starts at 0, 80, 160, 240
	if len(fragments) != 4 {
		t.Fatalf("expected 4 fragments, got %d", len(fragments))
	}
	for i, frag := range fragments {
		want := "doc_chunk_" + string(rune('0'+i))
		if frag.ID != want {
			t.Errorf("fragment %d: expected id %s, got %s", i, want, frag.ID)
		}
		if frag.Metadata["chunk_index"] == "" || frag.Metadata["start_char"] == "" || frag.Metadata["end_char"] == "" {
			t.Errorf("fragment %d missing position metadata: %v", i, frag.Metadata)
		}
	}

	// Consecutive fragments share the overlap region.
	tail := fragments[0].Content[len(fragments[0].Content)-20:]
	if !strings.HasPrefix(fragments[1].Content, tail) {
		t.Errorf("expected 20-char overlap between fragments 0 and 1")
	}
}

func TestNewChunker_DefaultsOnBadParams(t *testing.T) {
	chunker := NewChunker(0, -5)
	if chunker.size != DefaultChunkSize || chunker.overlap != DefaultChunkOverlap {
		t.Errorf("expected defaults, got size=%d overlap=%d", chunker.size, chunker.overlap)
	}

	// Overlap >= size must never produce a non-positive stride.
	chunker = NewChunker(50, 60)
	if chunker.overlap >= chunker.size {
		t.Errorf("overlap %d must stay below size %d", chunker.overlap, chunker.size)
	}
}
