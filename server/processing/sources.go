package processing

import "strings"

// stripSources deletes every source pattern match, line by line. A line left
// blank only because its markers were removed is dropped.
func (t Transformer) stripSources(s string) (string, int) {
	if len(t.sourcePatterns) == 0 || s == "" {
		return s, 0
	}

	lines := strings.Split(s, "\n")
	out := lines[:0]
	removed := 0

	for _, line := range lines {
		stripped := line
		for _, re := range t.sourcePatterns {
			n := len(re.FindAllStringIndex(stripped, -1))
			if n == 0 {
				continue
			}
			removed += n
			stripped = re.ReplaceAllLiteralString(stripped, "")
		}

		if stripped != line && strings.TrimSpace(stripped) == "" {
			continue
		}
		out = append(out, stripped)
	}

	return strings.Join(out, "\n"), removed
}
