package vectorstore

import "docqa/internal/domain"

// Payload is the stored form of a chunk next to its vector.
type Payload struct {
	PageContent string   `json:"page_content"`
	Metadata    Metadata `json:"metadata"`
}

// Metadata carries the traceability fields of a chunk.
type Metadata struct {
	Index     int              `json:"index"`
	Page      int              `json:"page"`
	Source    string           `json:"source"`
	HasTable  bool             `json:"has_table"`
	ChunkType domain.ChunkType `json:"chunk_type"`
	CharStart *int             `json:"char_start,omitempty"`
	CharEnd   *int             `json:"char_end,omitempty"`
	OCRUsed   bool             `json:"ocr_used"`
}

// NewPayload converts a chunk into its stored form.
func NewPayload(ch domain.Chunk) Payload {
	return Payload{
		PageContent: ch.Text,
		Metadata: Metadata{
			Index:     ch.Index,
			Page:      ch.Page,
			Source:    ch.Source,
			HasTable:  ch.HasTable,
			ChunkType: ch.Type,
			CharStart: ch.CharStart,
			CharEnd:   ch.CharEnd,
			OCRUsed:   ch.OCRUsed,
		},
	}
}

// Chunk converts a stored payload back into a chunk. A missing chunk type
// is derived from the table flag.
func (p Payload) Chunk() domain.Chunk {
	t := p.Metadata.ChunkType
	if t == "" {
		t = domain.ChunkText
		if p.Metadata.HasTable {
			t = domain.ChunkMixed
		}
	}
	return domain.Chunk{
		Index:     p.Metadata.Index,
		Text:      p.PageContent,
		Page:      p.Metadata.Page,
		Source:    p.Metadata.Source,
		HasTable:  p.Metadata.HasTable,
		Type:      t,
		CharStart: p.Metadata.CharStart,
		CharEnd:   p.Metadata.CharEnd,
		OCRUsed:   p.Metadata.OCRUsed,
	}
}
