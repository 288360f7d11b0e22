package prompt

import "strings"

// DefaultSystemPrompt is used whenever neither the session settings nor a
// named template supply one.
const DefaultSystemPrompt = "You are a helpful AI assistant."

// StopSequences must match the closing markers of the instruction framing
// below; the generator cuts the stream when it emits one.
var StopSequences = []string{"</s>", "[/INST]"}

// Build assembles the Mistral-instruct prompt. systemPrompt == "" selects
// the default; ragContext == "" omits the context section entirely.
func Build(userText, systemPrompt, ragContext string) string {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	var b strings.Builder
	b.WriteString("<s>[INST] ")
	b.WriteString(systemPrompt)
	if ragContext != "" {
		b.WriteString("\n\nContext information:\n")
		b.WriteString(ragContext)
	}
	b.WriteString("\n\nUser: ")
	b.WriteString(userText)
	b.WriteString(" [/INST]")
	return b.String()
}
