package prompt

import (
	"fmt"
	"strings"
)

// GetSystemPrompt instructs the model to answer from the CSV content only.
func GetSystemPrompt() string {
	return `You are a data analyst answering questions about a single CSV file.

Rules:
- Answer only from the CSV content provided by the user. Do not invent rows or columns.
- Detect the delimiter yourself (comma, semicolon or tab) and respect the header row.
- Numbers may use locale formats such as 1.234,56; keep the file's format in the answer.
- Reply in plain text, in the language of the question, without markdown tables or code fences.
- If the content was truncated, say so when it could change the answer.
- If the question cannot be answered from the file, say what is missing.`
}

// GetUserPrompt wraps the question and the file content into one message.
func GetUserPrompt(fileName, question, csv string, truncated bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", strings.TrimSpace(question))
	fmt.Fprintf(&b, "File: %s", fileName)
	if truncated {
		b.WriteString(" (truncated)")
	}
	b.WriteString("\n<csv>\n")
	b.WriteString(csv)
	if !strings.HasSuffix(csv, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("</csv>")
	return b.String()
}
