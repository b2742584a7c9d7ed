package llm

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/book-expert/podcast-service/internal/core"
)

const scriptPromptTemplate = `You are an expert scriptwriter for a science and research podcast.
Convert the following research paper text into a natural, engaging podcast script.
There are two hosts: "{{.First}}" and "{{.Second}}".
- {{.First}} introduces the paper, asks insightful questions, and guides the conversation.
- {{.Second}} acts as the expert, explaining the research in simple, conversational language.
- Generate the entire podcast script in {{.Language}}.
- Both hosts {{.First}} and {{.Second}} must speak fully in {{.Language}}.
- Explain all technical jargon in plain {{.Language}}.
- Include a warm intro and outro.
- Keep it engaging, not just a dry summary. Make them sound like they have good chemistry.
- Target length: 5-10 minutes when spoken (roughly 700-1400 words).
- Format output EXACTLY like this for every single line of dialogue:
{{.First}}: [{{.First}}'s dialogue]
{{.Second}}: [{{.Second}}'s dialogue]

Do not include any other markdown formatting or stage directions, just the names and dialogue.

Research Paper Text:
{{.Text}}
`

var scriptPrompt = template.Must(template.New("script").Parse(scriptPromptTemplate))

type promptData struct {
	First    string
	Second   string
	Language string
	Text     string
}

// BuildPrompt renders the scriptwriting instructions for req. The host names
// in the prompt are exactly the prefixes the script parser looks for.
func BuildPrompt(req core.ScriptRequest) (string, error) {
	var builder strings.Builder

	err := scriptPrompt.Execute(&builder, promptData{
		First:    req.FirstHost,
		Second:   req.SecondHost,
		Language: req.Language,
		Text:     req.Text,
	})
	if err != nil {
		return "", fmt.Errorf("render script prompt: %w", err)
	}

	return builder.String(), nil
}
