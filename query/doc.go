// Package query implements retrieval-augmented answering: the query is
// embedded, the closest documents are retrieved by cosine similarity, and
// an answer is generated from those passages. Failures carry their stage
// (ErrRetrievalFailed or ErrGenerationFailed) so callers can map them to
// distinct responses.
package query
