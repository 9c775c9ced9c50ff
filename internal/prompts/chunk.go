package prompts

import (
	"unicode"
	"unicode/utf8"

	"github.com/MikaYeghi/agent-first/pkg/ports"
)

// Chunk splits text into ordered pieces of at most budget runes.
// Joining the pieces yields text exactly. A piece ends after the last
// whitespace inside its window when there is one, so words are only cut
// when a single word is longer than the budget. A budget <= 0 disables
// chunking.
func Chunk(text string, budget int) ports.Prompt {
	if budget <= 0 || utf8.RuneCountInString(text) <= budget {
		return ports.Prompt{text}
	}

	var out ports.Prompt
	rest := text
	for rest != "" {
		if utf8.RuneCountInString(rest) <= budget {
			out = append(out, rest)
			break
		}

		// Byte offset just past the budget-th rune, and just past the last
		// whitespace rune inside that window.
		end, cut := 0, 0
		for i := 0; i < budget; i++ {
			r, size := utf8.DecodeRuneInString(rest[end:])
			end += size
			if unicode.IsSpace(r) {
				cut = end
			}
		}
		if cut == 0 {
			cut = end
		}

		out = append(out, rest[:cut])
		rest = rest[cut:]
	}
	return out
}
