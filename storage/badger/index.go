// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"math"
	"slices"
	"sync"

	"github.com/poiesic/ragd/core"
)

// vectorIndex is an in-memory cosine-similarity index over document
// embeddings. It holds normalized copies of the stored vectors and exposes
// the insert / remove / nearest-k surface of an ANN index; the current
// implementation is an exact flat scan, which keeps ordering fully
// deterministic. It is rebuilt from the persisted embedding records at open.
type vectorIndex struct {
	mu      sync.RWMutex
	entries map[core.ID][]float32 // unit-normalized vectors
}

func newVectorIndex() *vectorIndex {
	return &vectorIndex{
		entries: make(map[core.ID][]float32),
	}
}

// Upsert inserts or replaces the vector for a document ID.
func (ix *vectorIndex) Upsert(id core.ID, vector []float32) {
	normalized := normalize(vector)
	ix.mu.Lock()
	ix.entries[id] = normalized
	ix.mu.Unlock()
}

// Remove drops a document's vector from the index.
func (ix *vectorIndex) Remove(id core.ID) {
	ix.mu.Lock()
	delete(ix.entries, id)
	ix.mu.Unlock()
}

// Len returns the number of indexed vectors.
func (ix *vectorIndex) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Search returns the k nearest vectors by cosine similarity, descending.
// Equal scores are ordered by ascending document ID so output is stable.
func (ix *vectorIndex) Search(query []float32, k int) []core.SimilarityMatch {
	normalized := normalize(query)

	ix.mu.RLock()
	matches := make([]core.SimilarityMatch, 0, len(ix.entries))
	for id, vec := range ix.entries {
		matches = append(matches, core.SimilarityMatch{
			DocumentId: id,
			Score:      dotProduct(normalized, vec),
		})
	}
	ix.mu.RUnlock()

	slices.SortFunc(matches, func(a, b core.SimilarityMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.DocumentId < b.DocumentId {
			return -1
		}
		if a.DocumentId > b.DocumentId {
			return 1
		}
		return 0
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// normalize returns a unit-length copy of the vector. Zero vectors come
// back zeroed, which yields zero similarity against everything.
func normalize(vector []float32) []float32 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vector))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range vector {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

// dotProduct calculates the dot product of two vectors.
// For unit-normalized inputs this is the cosine similarity.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
