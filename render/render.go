// Package render pretty-prints search result collections for terminals,
// for debugging retrievals and demo output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/awslabs/graphrag-toolkit/model"
)

var (
	sourceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	topicStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			PaddingLeft(2)

	statementStyle = lipgloss.NewStyle().
			PaddingLeft(4)

	scoreStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	contextStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("13"))
)

// Collection renders a collection as styled terminal text.
func Collection(c *model.SearchResultCollection) string {
	var b strings.Builder

	for _, entityContext := range c.ContextStrings() {
		b.WriteString(contextStyle.Render("entities: " + entityContext))
		b.WriteByte('\n')
	}
	if len(c.EntityContexts) > 0 {
		b.WriteByte('\n')
	}

	for _, result := range c.Results {
		b.WriteString(Result(result))
		b.WriteByte('\n')
	}
	return b.String()
}

// Result renders a single search result.
func Result(result *model.SearchResult) string {
	var b strings.Builder

	sourceID := ""
	if result.Source != nil {
		sourceID = result.Source.SourceID
	}
	b.WriteString(sourceStyle.Render(sourceID))
	b.WriteString(" ")
	b.WriteString(scoreStyle.Render(fmt.Sprintf("(%.4f)", result.Score)))
	b.WriteByte('\n')

	for _, topic := range result.Topics {
		if topic.Topic != "" {
			b.WriteString(topicStyle.Render(topic.Topic))
			b.WriteByte('\n')
		}
		for _, statement := range topic.Statements {
			line := fmt.Sprintf("%s %s", statement.Statement,
				scoreStyle.Render(fmt.Sprintf("(%.4f)", statement.Score)))
			b.WriteString(statementStyle.Render(line))
			b.WriteByte('\n')
		}
	}
	return b.String()
}
