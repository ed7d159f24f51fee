package rag

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Generator produces grounded answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Answer is a composed response with the sequence numbers of the passages it
// was grounded on.
type Answer struct {
	Text           string `json:"text"`
	CitedSequences []int  `json:"cited_sequences"`
}

// AnswerComposer turns retrieved passages and a question into an answer. A
// transient generation failure is retried once after a short backoff.
type AnswerComposer struct {
	generator    Generator
	retryBackoff time.Duration
}

func NewAnswerComposer(generator Generator) *AnswerComposer {
	return &AnswerComposer{generator: generator, retryBackoff: 500 * time.Millisecond}
}

// Compose builds the grounded prompt and calls the generator. Passages are
// presented in the rank order retrieval produced.
func (c *AnswerComposer) Compose(ctx context.Context, question string, results []SearchResult) (*Answer, error) {
	if len(results) == 0 {
		return nil, ErrInvalidArgument("no passages to compose from")
	}

	prompt := buildGroundedPrompt(question, results)

	text, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryBackoff):
		}
		text, err = c.generator.Generate(ctx, prompt)
		if err != nil {
			return nil, ErrGenerationService(err)
		}
	}

	cited := make([]int, 0, len(results))
	for _, r := range results {
		cited = append(cited, r.Passage.SequenceNumber)
	}

	return &Answer{Text: strings.TrimSpace(text), CitedSequences: cited}, nil
}

func buildGroundedPrompt(question string, results []SearchResult) string {
	var b strings.Builder
	b.WriteString("You are a medical AI assistant. Answer the question based only on the provided context from the medical report.\n")
	b.WriteString("If the answer is not in the context, say \"This information is not available in the report.\"\n\n")
	b.WriteString("Context from the medical report:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "[Passage %d]\n%s\n\n", r.Passage.SequenceNumber, r.Passage.Text)
	}
	fmt.Fprintf(&b, "Question: %s\n\nAnswer:", question)
	return b.String()
}
