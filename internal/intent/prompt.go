package intent

import (
	"fmt"
	"strings"

	"github.com/alanmaizon/slidebuddy/internal/domain"
)

// PromptTokenBudget bounds the classification reply.
const PromptTokenBudget = 200

// BuildPrompt asks the model to classify one utterance. The summary only
// adds context; it never changes how the reply is parsed.
func BuildPrompt(utterance string, summary domain.ContextSummary) string {
	var builder strings.Builder
	builder.WriteString("You are SlideBuddy, an assistant that edits slide presentations.\n\n")
	builder.WriteString("Operations:\n")
	builder.WriteString("1. Translate the presentation into another language.\n")
	builder.WriteString("2. Find and replace text across the slides.\n")
	builder.WriteString("3. Enhance text in a style: professional, engaging, concise, academic, creative.\n")
	builder.WriteString("4. Change the text colour, optionally only text that has a given colour.\n")
	builder.WriteString("5. Undo the last change.\n\n")

	builder.WriteString("Examples:\n")
	for _, example := range promptExamples {
		fmt.Fprintf(&builder, "User: %s -> %s\n", example[0], example[1])
	}

	builder.WriteString("\nReply with exactly one line in one of these forms:\n")
	builder.WriteString("EXECUTE_TRANSLATE|<language>[|<scope>]\n")
	builder.WriteString("EXECUTE_REPLACE|<find text>|<replacement text>[|<scope>]\n")
	builder.WriteString("EXECUTE_ENHANCE|<style>[|<scope>]\n")
	builder.WriteString("EXECUTE_RECOLOR|<old colour or any>|<new colour>[|<scope>]\n")
	builder.WriteString("EXECUTE_UNDO\n")
	builder.WriteString("where <scope> is document, current_slide or selection and defaults to document.\n")
	builder.WriteString("If the request is ambiguous or a parameter is missing, reply with a short clarifying question instead.\n\n")

	title := summary.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Fprintf(&builder, "Presentation: %s (%d slides)\n", title, summary.SlideCount)
	if summary.Selection != "" {
		fmt.Fprintf(&builder, "Selection: %s\n", summary.Selection)
	}
	fmt.Fprintf(&builder, "User: %s\n", strings.TrimSpace(utterance))
	return builder.String()
}

var promptExamples = [][2]string{
	{`"Spanish"`, "EXECUTE_TRANSLATE|Spanish"},
	{`"Can you translate everything to French?"`, "EXECUTE_TRANSLATE|French"},
	{`"Turn this slide into Japanese"`, "EXECUTE_TRANSLATE|Japanese|current_slide"},
	{`"translate all slides"`, "What language would you like to translate to?"},
	{`'Replace "PRD" with 需求文档'`, "EXECUTE_REPLACE|PRD|需求文档"},
	{`"Update company name from OldCorp to NewCorp"`, "EXECUTE_REPLACE|OldCorp|NewCorp"},
	{`"Swap all instances of X for Y"`, "EXECUTE_REPLACE|X|Y"},
	{`"Make the selected text more engaging"`, "EXECUTE_ENHANCE|engaging|selection"},
	{`"Tighten up the wording"`, "EXECUTE_ENHANCE|concise"},
	{`"Make all the text dark blue"`, "EXECUTE_RECOLOR|any|dark blue"},
	{`"Change the red text on this slide to green"`, "EXECUTE_RECOLOR|red|green|current_slide"},
	{`"undo that"`, "EXECUTE_UNDO"},
}
