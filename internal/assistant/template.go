package assistant

import (
	"bytes"
	"fmt"
	"text/template"
)

// render executes the Assistant's system prompt template against vars plus
// the fixed "role" variable. A variable registered by renderVars but set
// to "" still renders empty; a template reference to a variable renderVars
// never populates fails the render, per spec.md §4.6's prompt contract.
func (a *Assistant) render() (string, error) {
	vars := map[string]string{}
	if a.renderVars != nil {
		for k, v := range a.renderVars() {
			vars[k] = v
		}
	}
	vars["role"] = a.role

	tmpl, err := template.New("system").Option("missingkey=error").Parse(a.systemPrompt)
	if err != nil {
		return "", fmt.Errorf("assistant: parse system prompt: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("assistant: render system prompt: %w", err)
	}
	return buf.String(), nil
}
