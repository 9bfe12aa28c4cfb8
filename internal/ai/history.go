package ai

import "unicode/utf8"

// BoundHistory keeps every system message plus the last turns non-system
// messages, in their original order, and truncates each content to maxChars
// runes. turns <= 0 keeps all messages; maxChars <= 0 disables truncation.
// Empty messages are dropped.
func BoundHistory(messages []Message, turns, maxChars int) []Message {
	keepFrom := 0
	if turns > 0 {
		seen := 0
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == RoleSystem || messages[i].Content == "" {
				continue
			}
			seen++
			if seen == turns {
				keepFrom = i
				break
			}
		}
	}

	out := make([]Message, 0, len(messages))
	for i, m := range messages {
		if m.Content == "" {
			continue
		}
		if m.Role != RoleSystem && i < keepFrom {
			continue
		}
		m.Content = truncateRunes(m.Content, maxChars)
		out = append(out, m)
	}
	return out
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
