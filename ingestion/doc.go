// Package ingestion implements the asynchronous write path: intake
// persists documents and enqueues embedding tasks; the worker drains the
// queue, embeds content, and upserts the vectors.
//
// Delivery is at-least-once, so the worker always upserts before acking.
// Failures split by whether a retry could succeed: transient provider
// failures requeue the task, while deleted documents, corrupt content,
// and outright provider rejections dead-letter it.
package ingestion
