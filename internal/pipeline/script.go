// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// shellWords quotes each word for a POSIX shell and joins them with spaces.
func shellWords(words ...string) (string, error) {
	quoted := make([]string, len(words))
	for i, w := range words {
		q, err := syntax.Quote(w, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", w, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}

// andThen joins commands with && so the RUN fails on the first error.
func andThen(cmds ...string) string { return strings.Join(cmds, " && ") }

// runInstruction checks that script parses as a POSIX shell program and
// wraps it in a RUN instruction.
func runInstruction(script string) (Instruction, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(strings.NewReader(script), ""); err != nil {
		return Instruction{}, fmt.Errorf("generated script does not parse: %w", err)
	}
	return Instruction{Op: "RUN", Args: script}, nil
}
