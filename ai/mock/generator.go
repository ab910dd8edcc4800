package mock

import (
	"context"
	"fmt"
	"strings"
)

// Generator is a test double for ai.Generator. Behavior can be injected
// via GenerateAnswerFunc; without injection it echoes the query and the
// number of context passages it was given, which is enough to assert that
// retrieval fed generation.
type Generator struct {
	// GenerateAnswerFunc is called by GenerateAnswer if set.
	GenerateAnswerFunc func(ctx context.Context, query string, contexts []string, model string) (string, error)

	callCount int
	lastModel string
}

// NewGenerator creates a mock generator. Returns the concrete type so
// tests can inject behavior and assert on call counts.
func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateAnswer produces a canned answer describing its inputs.
func (m *Generator) GenerateAnswer(ctx context.Context, query string, contexts []string, model string) (string, error) {
	m.callCount++
	m.lastModel = model

	if m.GenerateAnswerFunc != nil {
		return m.GenerateAnswerFunc(ctx, query, contexts, model)
	}

	if len(contexts) == 0 {
		return "I don't have any relevant information to answer that.", nil
	}
	return fmt.Sprintf("answer to %q from %d sources: %s",
		query, len(contexts), strings.Join(contexts, " | ")), nil
}

// CallCount returns the number of times GenerateAnswer was called.
func (m *Generator) CallCount() int {
	return m.callCount
}

// LastModel returns the model override passed on the most recent call.
func (m *Generator) LastModel() string {
	return m.lastModel
}

// Reset clears the call count and injected behavior.
func (m *Generator) Reset() {
	m.callCount = 0
	m.lastModel = ""
	m.GenerateAnswerFunc = nil
}
