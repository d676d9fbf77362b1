package symbols

import (
	"regexp"
	"strings"
)

// PythonStrategy recognizes Python function, class and module-level variable
// definitions. Block extent follows indentation: every line indented deeper
// than the definition line belongs to the block.
type PythonStrategy struct{}

func (PythonStrategy) Language() string { return "Python" }

func (PythonStrategy) Extensions() []string { return []string{".py"} }

func (PythonStrategy) Extract(content, symbol string) (string, int, int, bool) {
	quoted := regexp.QuoteMeta(symbol)
	funcPattern := regexp.MustCompile(`^\s*(?:async\s+)?def\s+` + quoted + `\s*\(`)
	classPattern := regexp.MustCompile(`^\s*class\s+` + quoted + `\b`)
	varPattern := regexp.MustCompile(`^\s*` + quoted + `\s*=\s*\S`)

	lines := strings.Split(content, "\n")
	var block []string
	startIdx := -1
	targetIndent := -1
	inDefinition := false

	for n, line := range lines {
		if !inDefinition {
			if funcPattern.MatchString(line) || classPattern.MatchString(line) || varPattern.MatchString(line) {
				inDefinition = true
				startIdx = n
				targetIndent = indentOf(line)
				block = append(block, line)
			}
			continue
		}

		if strings.TrimSpace(line) == "" || indentOf(line) > targetIndent {
			block = append(block, line)
			continue
		}
		break
	}

	if len(block) == 0 {
		return "", 0, 0, false
	}

	// drop trailing blank lines the indentation rule swallowed
	for len(block) > 0 && strings.TrimSpace(block[len(block)-1]) == "" {
		block = block[:len(block)-1]
	}

	text := strings.Join(block, "\n")
	return text, startIdx + 1, startIdx + len(block), true
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
