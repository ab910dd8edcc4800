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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidArgument indicates malformed caller input. It is never
	// retried and surfaces as a client error at the API boundary.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEmptyContent indicates a document with empty content.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyQuery indicates a query request with empty query text.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrInvalidTopK indicates a top_k value that is zero or negative.
	ErrInvalidTopK = errors.New("top_k must be positive")

	// ErrInvalidMetadata indicates a metadata value outside the
	// string/number/bool/mapping union.
	ErrInvalidMetadata = errors.New("invalid metadata value")
)
