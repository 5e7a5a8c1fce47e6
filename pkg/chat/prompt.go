package chat

import (
	"strings"
	"text/template"
)

// NoNotesPlaceholder stands in for an empty notes section.
const NoNotesPlaceholder = "No notes available"

var promptTemplate = template.Must(template.New("prompt").Parse(`
You are a helpful AI assistant for a note-taking app. Help the user with their notes.
Be concise but helpful. Respond to queries about their notes with relevant information.

When formatting your responses, please follow these guidelines:
- Use markdown formatting for better readability
- Use headings (# Heading) for section titles
- Use bullet points (* item) or numbered lists (1. item) when listing items
- Use **bold** for emphasis on important points
- Use ` + "`code`" + ` formatting for any technical terms or code references
- Structure longer responses with clear sections
- For note summaries, highlight key points in **bold**

User's question: {{.Message}}

User's notes:
{{.Notes}}
`))

// BuildPrompt renders the assistant prompt for a question and the user's notes.
func BuildPrompt(message, notes string) string {
	if strings.TrimSpace(notes) == "" {
		notes = NoNotesPlaceholder
	}

	var sb strings.Builder
	// The template has no fallible actions beyond writing to a strings.Builder.
	_ = promptTemplate.Execute(&sb, struct{ Message, Notes string }{message, notes})
	return sb.String()
}
