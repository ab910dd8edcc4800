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

import (
	"fmt"
	"strings"
)

// ValidateContent validates document content at intake.
//
// Validation rules:
//   - Content must not be empty
//
// NOT validated (populated by the store):
//   - ID (assigned from database sequence)
//   - Checksum, CreatedAt (set at persist time)
func ValidateContent(content string) error {
	if content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrEmptyContent)
	}
	return nil
}

// ValidateMetadata validates that every value in the mapping belongs to the
// restricted union, recursing into nested mappings.
func ValidateMetadata(m Metadata) error {
	for key, value := range m {
		if key == "" {
			return fmt.Errorf("%w: empty metadata key", ErrInvalidMetadata)
		}
		switch value.Kind {
		case MetaString, MetaNumber, MetaBool:
		case MetaMap:
			if err := ValidateMetadata(value.Map); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: key %q has unknown kind %d", ErrInvalidMetadata, key, value.Kind)
		}
	}
	return nil
}

// ValidateQueryRequest validates a QueryRequest according to domain rules.
//
// Validation rules:
//   - Query must not be empty or whitespace-only
//   - TopK must be positive (the HTTP layer applies DefaultTopK before this
//     runs; a zero or negative value here is a caller error, not a default)
func ValidateQueryRequest(req *QueryRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidArgument)
	}

	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrEmptyQuery)
	}

	if req.TopK <= 0 {
		return fmt.Errorf("%w: %w (got %d)", ErrInvalidArgument, ErrInvalidTopK, req.TopK)
	}

	return nil
}
