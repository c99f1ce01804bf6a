package retrieval

import (
	"fmt"
	"strings"
)

// Default chunking parameters for ingestion, in words.
const (
	DefaultChunkSize    = 300
	DefaultChunkOverlap = 100
)

// Chunk splits text into windows of size words, each overlapping the
// previous one by overlap words. The final window may be shorter.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Documents chunks text into Documents with IDs derived from source.
func Documents(source, text string, size, overlap int) []Document {
	chunks := Chunk(text, size, overlap)
	docs := make([]Document, len(chunks))
	for i, c := range chunks {
		docs[i] = Document{
			ID:      fmt.Sprintf("%s#%04d", source, i),
			Content: c,
			Source:  source,
		}
	}
	return docs
}
