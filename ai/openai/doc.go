// Package openai implements the ai interfaces against OpenAI-compatible
// APIs (OpenAI itself, Ollama, LocalAI, vLLM). Transport errors are sorted
// into the transient/permanent taxonomy before they leave the package, so
// callers only ever route on ai.ErrProviderUnavailable and
// ai.ErrProviderRejected.
package openai
