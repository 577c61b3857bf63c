package chunking

import (
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

// Chunker turns page texts into section-tagged chunks with a document-wide
// chunk index.
type Chunker struct {
	splitter   windowSplitter
	classifier *SectionClassifier
}

func NewChunker(chunkSize, overlap int) *Chunker {
	return &Chunker{
		splitter:   newWindowSplitter(chunkSize, overlap),
		classifier: NewSectionClassifier(),
	}
}

func (c *Chunker) Chunk(pages []domain.PageText) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(pages)*2)
	current := domain.SectionGeneral
	index := 0

	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		current = c.classifier.Classify(page.Text, current)

		for _, window := range c.splitter.split(page.Text) {
			out = append(out, domain.Chunk{
				Content:     window,
				PageNumber:  page.Number,
				ChunkIndex:  index,
				SectionType: c.classifier.Classify(window, current),
			})
			index++
		}
	}
	return out
}
