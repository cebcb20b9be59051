package models

// Document is the full extracted text of one upload.
type Document struct {
	Filename string
	Text     string
}

// Chunk represents a retrieval unit cut from a Document
type Chunk struct {
	Source  string
	Index   int
	Content string
}

// IndexEntry is what a vector index stores for one chunk.
type IndexEntry struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

type IngestResult struct {
	Filename string `json:"filename"`
	Chunks   int    `json:"chunks"`
}

type AskResponse struct {
	Answer  string `json:"answer"`
	Context string `json:"context"`
}
