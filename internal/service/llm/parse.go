package llm

import "strings"

// ParseList splits a model response into list items, dropping bullets,
// numbering and blank lines.
func ParseList(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if item := stripMarker(line); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func stripMarker(line string) string {
	line = strings.TrimSpace(line)
	for _, bullet := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, bullet) {
			return strings.TrimSpace(line[len(bullet):])
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
