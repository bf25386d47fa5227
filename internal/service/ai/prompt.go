package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/careline/backend/internal/model/persona"
)

// BuildSystemPrompt renders the system instruction for p.
func BuildSystemPrompt(p persona.Persona) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, a compassionate %s for college and university students.", p.Name, p.Title)
	if p.Mission != "" {
		b.WriteString(" ")
		b.WriteString(p.Mission)
	}
	if p.Tone != "" {
		fmt.Fprintf(&b, "\nTone: %s.", p.Tone)
	}

	writeList(&b, "CORE APPROACH", p.StyleRules, false)
	writeList(&b, "STUDENT-FOCUSED SUPPORT AREAS", p.FocusAreas, true)

	if p.SafetyRule != "" {
		b.WriteString("\n\nSAFETY PRIORITY: ")
		b.WriteString(p.SafetyRule)
	}

	b.WriteString("\n\nRemember: you are here to listen, understand, and help them feel less alone in their student journey.")
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string, numbered bool) {
	if len(items) == 0 {
		return
	}

	b.WriteString("\n\n")
	b.WriteString(title)
	b.WriteString(":")
	for i, item := range items {
		if numbered {
			fmt.Fprintf(b, "\n%d. %s", i+1, item)
		} else {
			b.WriteString("\n- ")
			b.WriteString(item)
		}
	}
}
