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

package mock

import "github.com/poiesic/ragd/ai"

// Provider bundles the mock embedder and generator behind the ai.Provider
// interface.
type Provider struct {
	embedder  *Embedder
	generator *Generator
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a mock provider whose embedder produces vectors of
// the given width.
func NewProvider(dimension int) *Provider {
	return &Provider{
		embedder:  NewEmbedder(dimension),
		generator: NewGenerator(),
	}
}

// Embedder returns the mock embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Generator returns the mock generation service.
func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// MockEmbedder returns the concrete embedder for behavior injection and
// assertions.
func (p *Provider) MockEmbedder() *Embedder {
	return p.embedder
}

// MockGenerator returns the concrete generator for behavior injection and
// assertions.
func (p *Provider) MockGenerator() *Generator {
	return p.generator
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}
