package models

const (
	ContextSeparator = "\n---\n"
	ThinkTag         = `(?s)<think>.*?</think>`
	NoAnswer         = "I could not find the answer in the PDF."
	NoDocument       = "No PDF uploaded."

	MetaSource = "source"
	MetaChunk  = "chunk"
)

var (
	MemoryPromptTemplate = "Conversation history:\n%s\n\n"

	AnswerPromptTemplate = "You are a helpful assistant. Use the following PDF content to answer the user's question as concisely and accurately as possible. " +
		"If the answer is not present, say '" + NoAnswer + "'\n\n" +
		"PDF Content:\n%s\n\n" +
		"Question:\n%s\n" +
		"Answer:"

	SummaryPromptTemplate = "Summarize the following PDF content in about %d words. Be detailed and descriptive.\n\nPDF Content:\n%s\n\nSummary:"
)
