// Package script turns raw language-model output into ordered dialogue turns.
package script

import "strings"

// Turn is one contiguous utterance attributed to a single host.
type Turn struct {
	Speaker string
	Text    string
}

// Parse splits a generated script into turns for the two named hosts.
//
// A line starting with "<first>:" or "<second>:" (exact, case-sensitive)
// opens a new turn. Any other non-blank line continues the previous turn, or
// opens a turn for first when no turn exists yet. Blank lines are skipped.
// Parse never fails; malformed input degrades to fewer, longer turns.
func Parse(raw, first, second string) []Turn {
	firstPrefix := first + ":"
	secondPrefix := second + ":"

	var turns []Turn

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case first != "" && strings.HasPrefix(line, firstPrefix):
			turns = append(turns, Turn{Speaker: first, Text: strings.TrimSpace(line[len(firstPrefix):])})
		case second != "" && strings.HasPrefix(line, secondPrefix):
			turns = append(turns, Turn{Speaker: second, Text: strings.TrimSpace(line[len(secondPrefix):])})
		case len(turns) > 0:
			last := &turns[len(turns)-1]
			last.Text = joinText(last.Text, line)
		default:
			turns = append(turns, Turn{Speaker: first, Text: line})
		}
	}

	return turns
}

// Speakable reports whether the turn has any text worth synthesizing.
func (t Turn) Speakable() bool {
	return strings.TrimSpace(t.Text) != ""
}

func joinText(existing, continuation string) string {
	if existing == "" {
		return continuation
	}

	return existing + " " + continuation
}
