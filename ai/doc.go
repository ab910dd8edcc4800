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

// Package ai provides abstractions for the AI services behind the
// pipeline: text embedding and answer generation.
//
// The package defines the provider-neutral interfaces; implementations
// live in sub-packages:
//
//   - ai/openai: production implementation against OpenAI-compatible APIs
//   - ai/mock: test doubles for unit testing without external services
//
// Failures split into two classes that callers route on: transient
// (ErrProviderUnavailable, worth retrying) and permanent
// (ErrProviderRejected, not worth retrying). The Retry helper applies
// exponential backoff across that split.
//
// Public constructors (openai.NewProvider, openai.NewEmbedder) return
// interface types to keep callers off the concrete implementations. Mock
// constructors return concrete types so tests can inject behavior through
// their function fields.
package ai
