package server

import (
	"time"

	"github.com/poiesic/ragd/core"
)

// Wire types for the HTTP API. Metadata travels as "meta_info" to stay
// compatible with existing clients.

type documentRequest struct {
	Content  string        `json:"content"`
	MetaInfo core.Metadata `json:"meta_info,omitempty"`
}

type documentResponse struct {
	ID        uint64        `json:"id"`
	Content   string        `json:"content"`
	MetaInfo  core.Metadata `json:"meta_info,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Embedded  bool          `json:"embedded"`
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
	Model string `json:"model,omitempty"`
}

type sourceResponse struct {
	ID         uint64        `json:"id"`
	Content    string        `json:"content"`
	MetaInfo   core.Metadata `json:"meta_info,omitempty"`
	Similarity float32       `json:"similarity"`
}

type queryResponse struct {
	Answer  string           `json:"answer"`
	Sources []sourceResponse `json:"sources"`
}

type queueStatusResponse struct {
	Pending  int `json:"pending"`
	Inflight int `json:"inflight"`
	Dead     int `json:"dead"`
}

type statusResponse struct {
	Documents  int                 `json:"documents"`
	Embeddings int                 `json:"embeddings"`
	Dimension  int                 `json:"dimension"`
	Queue      queueStatusResponse `json:"queue"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toDocumentResponse(doc *core.Document, embedded bool) documentResponse {
	return documentResponse{
		ID:        uint64(doc.Id),
		Content:   doc.Content,
		MetaInfo:  doc.Metadata,
		CreatedAt: doc.CreatedAt,
		Embedded:  embedded,
	}
}

func toQueryResponse(resp *core.AnswerResponse) queryResponse {
	sources := make([]sourceResponse, len(resp.Sources))
	for i, match := range resp.Sources {
		sources[i] = sourceResponse{
			ID:         uint64(match.Document.Id),
			Content:    match.Document.Content,
			MetaInfo:   match.Document.Metadata,
			Similarity: match.Similarity,
		}
	}
	return queryResponse{
		Answer:  resp.Answer,
		Sources: sources,
	}
}
