package router

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the classifier instructions from the same rules the
// rule tier uses, so both tiers agree on the set of targets.
func BuildPrompt(trade string, rules []Rule) string {
	if trade = strings.TrimSpace(trade); trade == "" {
		trade = "home services"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You route phone calls for a %s company.\n", trade)
	b.WriteString("Read the caller's latest utterance and pick exactly one target.\n")
	b.WriteString("Return JSON only.\n\n")
	b.WriteString("JSON schema:\n")
	b.WriteString(`{"target":"one of the targets below","thought":"short reason","confidence":0.0,"priority":"NORMAL|HIGH|EMERGENCY"}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Confidence is between 0 and 1.\n")
	b.WriteString("- Use EMERGENCY for fire, smoke, gas, flooding, sparks or anything unsafe.\n")
	fmt.Fprintf(&b, "- If uncertain, choose %s.\n\n", DefaultTarget)
	b.WriteString("Targets:\n")
	seen := make(map[string]bool, len(rules)+1)
	for _, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if len(r.Keywords) > 0 {
			fmt.Fprintf(&b, "- %s (cues: %s)\n", name, strings.Join(r.Keywords, ", "))
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	if !seen[DefaultTarget] {
		fmt.Fprintf(&b, "- %s (questions about hours, pricing, service area, anything else)\n", DefaultTarget)
	}
	return b.String()
}
