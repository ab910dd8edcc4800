// Package queue defines the durable ingestion task queue contract.
//
// The queue decouples document intake from embedding: intake enqueues a
// task and returns immediately, and the embedding workers drain the queue
// at their own pace. Delivery is at-least-once; exactly-once effects come
// from the workers' idempotent embedding upserts, not from the queue.
package queue
