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

package queue

import "errors"

var (
	// ErrEmpty is returned by Dequeue when no task is pending.
	ErrEmpty = errors.New("queue is empty")

	// ErrQueueClosed is returned when operating on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrUnknownDelivery is returned by Ack and Nack when the delivery is
	// no longer in flight, typically because its visibility timeout
	// expired and the task was redelivered or dead-lettered.
	ErrUnknownDelivery = errors.New("unknown delivery")

	// ErrDeadLetterNotFound is returned by RequeueDead for a sequence
	// number with no dead-lettered task.
	ErrDeadLetterNotFound = errors.New("dead letter not found")
)
