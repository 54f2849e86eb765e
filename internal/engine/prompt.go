package engine

import (
	"strings"

	"github.com/MikeSquared-Agency/frontdesk/internal/callctx"
	"github.com/MikeSquared-Agency/frontdesk/internal/emotion"
	"github.com/MikeSquared-Agency/frontdesk/internal/triage"
)

const genericPrompt = "I'm sorry, I didn't quite catch that. Could you tell me a bit more about what's going on?"

var slotQuestions = map[string]string{
	callctx.SlotName:           "Can I get your name?",
	callctx.SlotPhone:          "What's the best number to reach you?",
	callctx.SlotAddress:        "What's the service address?",
	callctx.SlotProblemSummary: "Can you describe the problem you're having?",
}

var acknowledgements = map[emotion.Emotion]string{
	emotion.Angry:      "I'm sorry about the trouble.",
	emotion.Frustrated: "I'm sorry about the trouble.",
	emotion.Panicked:   "I understand. Let's get this handled right now.",
	emotion.Stressed:   "I understand. We'll get this taken care of.",
	emotion.Sad:        "I'm sorry to hear that.",
	emotion.Urgent:     "I understand this is urgent.",
}

type promptInput struct {
	route   triage.Route
	opening string
	emotion emotion.Result
	missing []string
	company string
}

// nextPrompt builds what the agent says next: an emotional acknowledgement,
// the matched card's opening line, then the route's follow-up.
func nextPrompt(in promptInput) string {
	var parts []string
	if ack := acknowledgements[in.emotion.Primary]; ack != "" {
		parts = append(parts, ack)
	}
	if in.opening != "" {
		parts = append(parts, in.opening)
	}

	switch in.route {
	case triage.RouteTransfer:
		if in.opening == "" {
			parts = append(parts, "Let me connect you with someone who can help right away.")
		}
	case triage.RouteEndCall:
		if in.opening == "" {
			closing := "Thanks for calling"
			if in.company != "" {
				closing += " " + in.company
			}
			parts = append(parts, closing+". Have a good day.")
		}
	case triage.RouteBookingFlow:
		if q := firstQuestion(in.missing); q != "" {
			parts = append(parts, q)
		} else {
			parts = append(parts, "I have everything I need. Let me find a time that works for you.")
		}
	case triage.RouteScenarioEngine:
		if in.opening == "" {
			parts = append(parts, "Let me look into that for you.")
		}
	case triage.RouteMessageOnly:
		parts = append(parts, "I can take a message and have someone get back to you.")
		if q := firstQuestion(in.missing); q != "" {
			parts = append(parts, q)
		}
	}

	if len(parts) == 0 {
		return genericPrompt
	}
	return strings.Join(parts, " ")
}

func firstQuestion(missing []string) string {
	for _, slot := range missing {
		if q, ok := slotQuestions[slot]; ok {
			return q
		}
	}
	return ""
}
