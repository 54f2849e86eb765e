package preprocess

import "strings"

// fillers are always disfluencies when they stand alone as a token.
var fillers = map[string]bool{
	"um": true, "umm": true, "ummm": true, "uh": true, "uhh": true, "uhm": true,
	"uhhh": true, "er": true, "erm": true, "hmm": true, "hmmm": true, "mm": true,
	"mhm": true, "ah": true,
}

// likeLeadIns are words after which a comma-delimited "like" is filler
// ("it was like, freezing") rather than a verb ("I'd like, a tech").
var likeLeadIns = map[string]bool{
	"was": true, "is": true, "it's": true, "its": true, "it": true, "and": true,
	"so": true, "just": true, "but": true, "because": true, "cause": true,
	"totally": true, "really": true,
}

// StripFillers removes disfluencies without removing content words. "like"
// and "you know" are only dropped in comma-delimited filler positions. On any
// internal failure, or when nothing but fillers remain, it returns the trimmed
// input.
func StripFillers(text string) (out string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			out = trimmed
		}
	}()

	tokens := strings.Fields(trimmed)
	kept := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		core, trail := splitTrailing(tok)
		lower := strings.ToLower(core)

		drop := false
		switch {
		case fillers[lower]:
			drop = true
		case lower == "like" && strings.HasPrefix(trail, ","):
			drop = len(kept) == 0 || endsWithComma(kept[len(kept)-1]) || likeLeadIns[lastCore(kept)]
		case lower == "you" && i+1 < len(tokens):
			nextCore, nextTrail := splitTrailing(tokens[i+1])
			if strings.EqualFold(nextCore, "know") && strings.HasPrefix(nextTrail, ",") &&
				(len(kept) == 0 || endsWithComma(kept[len(kept)-1])) {
				i++
				trail = nextTrail
				drop = true
			}
		}

		if !drop {
			kept = append(kept, tok)
			continue
		}
		// Keep sentence-ending punctuation the filler was carrying.
		if end := strings.TrimLeft(trail, ","); end != "" && len(kept) > 0 {
			last := strings.TrimRight(kept[len(kept)-1], ",")
			kept[len(kept)-1] = last + end
		}
	}

	if len(kept) == 0 {
		return trimmed
	}
	last := len(kept) - 1
	kept[last] = strings.TrimRight(kept[last], ",")
	return strings.Join(kept, " ")
}

// splitTrailing separates a token into its word part and trailing punctuation.
func splitTrailing(tok string) (string, string) {
	end := len(tok)
	for end > 0 && strings.ContainsRune(",.!?;:", rune(tok[end-1])) {
		end--
	}
	return tok[:end], tok[end:]
}

func endsWithComma(tok string) bool {
	return strings.HasSuffix(tok, ",")
}

func lastCore(kept []string) string {
	core, _ := splitTrailing(kept[len(kept)-1])
	return strings.ToLower(core)
}
