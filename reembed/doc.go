// Package reembed regenerates embeddings for stored documents in batches.
// It serves two maintenance jobs: re-embedding the whole corpus after an
// embedding model change, and sweeping up documents left without an
// embedding by a lost ingestion task.
package reembed
