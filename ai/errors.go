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

package ai

import "errors"

var (
	// ErrProviderUnavailable marks a transient provider failure: the
	// request may succeed if retried. Connection failures, timeouts,
	// 5xx responses, and rate limiting fall in this class.
	ErrProviderUnavailable = errors.New("ai provider unavailable")

	// ErrProviderRejected marks a permanent provider failure: the
	// provider understood the request and refused it, so retrying the
	// same request is pointless. Authentication failures and invalid
	// model names fall in this class.
	ErrProviderRejected = errors.New("ai provider rejected request")
)

// IsUnavailable reports whether err is a transient provider failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsRejected reports whether err is a permanent provider failure.
func IsRejected(err error) bool {
	return errors.Is(err, ErrProviderRejected)
}
