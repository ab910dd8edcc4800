package openai

import (
	"fmt"
	"strings"
)

const generationSystemPrompt = `You are an assistant that answers questions using only the provided context passages.

Rules:
- Base your answer solely on the context. Do not use outside knowledge.
- If the context does not contain the information needed to answer, say that you don't have relevant information. Never invent facts.
- Answer concisely and cite which passages you drew on by their number, like [1] or [2].`

// buildUserPrompt assembles the retrieval context and the question into a
// single human message. Passages are numbered and delimited so the model
// can cite them and so passage boundaries survive odd content.
func buildUserPrompt(query string, contexts []string) string {
	var b strings.Builder

	if len(contexts) == 0 {
		b.WriteString("Context: no relevant passages were found.\n")
	} else {
		b.WriteString("Context:\n")
		for i, passage := range contexts {
			fmt.Fprintf(&b, "[%d] <<<\n%s\n>>>\n", i+1, passage)
		}
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}
