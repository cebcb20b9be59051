package rag

import (
	"fmt"
	"strings"

	"pdf-rag/internal/models"
)

// BuildAnswerPrompt assembles the question prompt. The history block is only
// added when memory is non-empty.
func BuildAnswerPrompt(context, question, memory string) string {
	var sb strings.Builder
	if memory != "" {
		fmt.Fprintf(&sb, models.MemoryPromptTemplate, memory)
	}
	fmt.Fprintf(&sb, models.AnswerPromptTemplate, context, question)
	return sb.String()
}

func BuildSummaryPrompt(document string, words int) string {
	return fmt.Sprintf(models.SummaryPromptTemplate, words, document)
}

// JoinContext joins retrieved chunk texts in rank order.
func JoinContext(chunks []string) string {
	return strings.Join(chunks, models.ContextSeparator)
}
