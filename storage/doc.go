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


// Package storage provides the storage abstraction layer for ragd.
//
// This package defines the DocumentRepository interface that decouples the
// vector store implementation from the ingestion and query paths, plus the
// serialization helpers shared by storage backends.
//
// Constructors in implementation packages (storage/badger) return the
// storage.DocumentRepository interface to prevent coupling to backend
// specifics; alternative backends only need to satisfy the interface.
//
// Two invariants every implementation must uphold:
//
//   - A document has zero or exactly one live embedding record.
//     UpsertEmbedding replaces; it never duplicates.
//   - SimilaritySearch only returns documents with a live embedding record,
//     ordered by descending similarity with ties broken by ascending ID.
package storage
