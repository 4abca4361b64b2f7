package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alanmaizon/slidebuddy/internal/domain"
	"github.com/alanmaizon/slidebuddy/internal/session"
	"github.com/alanmaizon/slidebuddy/internal/slides"
)

const setupGuidance = "AI text enhancement needs a completion API key.\n" +
	"- Server: set LLM_PROVIDER=openai with OPENAI_API_KEY, or LLM_PROVIDER=gemini with GEMINI_API_KEY\n" +
	"- Per request: send your key in the X-LLM-Api-Key header\n" +
	"Translation and find & replace keep working without a key."

func resultMessage(d domain.Directive, result domain.OperationResult) string {
	var builder strings.Builder

	switch d.Operation {
	case domain.OpTranslate:
		if result.TotalMutated == 0 {
			fmt.Fprintf(&builder, "Nothing on %s needed translating to %s.", result.ScopeDescription, d.Translate.TargetLanguage)
		} else {
			fmt.Fprintf(&builder, "Translated %d of %d text elements on %s to %s.",
				result.TotalMutated, result.TotalConsidered, result.ScopeDescription, d.Translate.TargetLanguage)
		}
	case domain.OpReplace:
		if result.TotalMutated == 0 {
			fmt.Fprintf(&builder, "No matches for %q found on %s.", d.Replace.FindText, result.ScopeDescription)
		} else {
			fmt.Fprintf(&builder, "Replaced %q with %q in %d %s across %d %s.",
				d.Replace.FindText, d.Replace.ReplaceText,
				result.TotalMutated, plural(result.TotalMutated, "element", "elements"),
				result.SlidesTouched(), plural(result.SlidesTouched(), "slide", "slides"))
		}
	case domain.OpEnhance:
		if result.TotalMutated == 0 {
			fmt.Fprintf(&builder, "No text on %s needed enhancing.", result.ScopeDescription)
		} else {
			fmt.Fprintf(&builder, "Enhanced %d of %d text elements on %s (%s style).",
				result.TotalMutated, result.TotalConsidered, result.ScopeDescription, d.Enhance.Style)
		}
	case domain.OpRecolor:
		switch {
		case result.TotalMutated == 0 && d.Recolor.FromName != "":
			fmt.Fprintf(&builder, "No %s text found on %s.", d.Recolor.FromName, result.ScopeDescription)
		case result.TotalMutated == 0:
			fmt.Fprintf(&builder, "All text on %s is already %s.", result.ScopeDescription, d.Recolor.ToName)
		default:
			fmt.Fprintf(&builder, "Changed the text colour to %s in %d %s across %d %s.",
				d.Recolor.ToName,
				result.TotalMutated, plural(result.TotalMutated, "element", "elements"),
				result.SlidesTouched(), plural(result.SlidesTouched(), "slide", "slides"))
		}
	}

	if failed := result.Failed(); failed > 0 {
		fmt.Fprintf(&builder, " %d %s could not be updated.", failed, plural(failed, "element", "elements"))
	}
	if result.Cancelled {
		builder.WriteString(" Stopped early because the request was cancelled; changes made so far were kept.")
	}
	if result.TotalMutated > 0 {
		builder.WriteString(" Say \"undo\" to revert.")
	}
	return builder.String()
}

func revertMessage(result domain.RevertResult) string {
	message := fmt.Sprintf("Reverted %q: restored %d %s.", result.Label, result.Restored, plural(result.Restored, "element", "elements"))
	if result.StepsReverted > 1 {
		message += fmt.Sprintf(" %d later changes were undone as well.", result.StepsReverted-1)
	}
	if result.Partial {
		message += fmt.Sprintf(" %d %s no longer exist and could not be restored.",
			len(result.Skipped), plural(len(result.Skipped), "element", "elements"))
	}
	return message
}

func revertFailureMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNothingToUndo):
		return "There is nothing to undo."
	case errors.Is(err, session.ErrSnapshotNotFound):
		return "That change can no longer be undone."
	default:
		return documentFailureMessage(err)
	}
}

func documentFailureMessage(err error) string {
	switch {
	case errors.Is(err, slides.ErrNoDocument):
		return "No presentation is open. Open a presentation and try again."
	case errors.Is(err, slides.ErrUnauthorized):
		return "I couldn't access the presentation. Please sign in to Google Slides again."
	case errors.Is(err, slides.ErrForbidden):
		return "You don't have permission to edit this presentation."
	case errors.Is(err, slides.ErrUnavailable):
		return "Google Slides is not responding right now. Please try again in a moment."
	case errors.Is(err, slides.ErrElementNotFound):
		return "Part of the presentation changed while I was working. Please try again."
	default:
		return "Something went wrong while reading the presentation: " + err.Error()
	}
}

func plural(n int, one string, many string) string {
	if n == 1 {
		return one
	}
	return many
}
