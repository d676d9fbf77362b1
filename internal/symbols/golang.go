package symbols

import (
	"regexp"
	"strings"
)

// GoStrategy recognizes Go function, method, type, const and var definitions.
type GoStrategy struct{}

func (GoStrategy) Language() string { return "Go" }

func (GoStrategy) Extensions() []string { return []string{".go"} }

func (GoStrategy) Extract(content, symbol string) (string, int, int, bool) {
	quoted := regexp.QuoteMeta(symbol)
	funcPattern := regexp.MustCompile(`^func\s+(?:\(.*\)\s+)?` + quoted + `\s*\(`)
	typePattern := regexp.MustCompile(`^type\s+` + quoted + `\b`)
	varPattern := regexp.MustCompile(`^(?:var\s+` + quoted + `\s+[^=;\n]+|(?:var|const)\s+` + quoted + `\s*=|` + quoted + `\s*:=\s*\S)`)

	lines := strings.Split(content, "\n")
	var block []string
	startIdx := -1
	braceCount := 0
	inDefinition := false

	for n, line := range lines {
		if !inDefinition {
			if funcPattern.MatchString(line) || typePattern.MatchString(line) || varPattern.MatchString(line) {
				inDefinition = true
				startIdx = n
				block = append(block, line)
				braceCount += strings.Count(line, "{") - strings.Count(line, "}")
				// one-line var, const or type alias definitions have no
				// open brace left at the end of the first line
				if braceCount == 0 {
					break
				}
			}
			continue
		}

		block = append(block, line)
		braceCount += strings.Count(line, "{") - strings.Count(line, "}")
		if braceCount == 0 {
			break
		}
	}

	if len(block) == 0 {
		return "", 0, 0, false
	}

	text := strings.TrimRight(strings.Join(block, "\n"), "\n")
	return text, startIdx + 1, startIdx + len(block), true
}
