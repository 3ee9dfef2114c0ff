// SPDX-License-Identifier: MPL-2.0

package pipeline

import "strings"

// Containerfile renders the instructions of every layer, one block per step.
// The output depends only on the snapshot, so equal inputs give byte-equal
// files.
func Containerfile(s Snapshot) string {
	var sb strings.Builder
	sb.WriteString("# syntax=docker/dockerfile:1\n")
	sb.WriteString("# Generated by svcpack. Edit svcpack.cue instead.\n")
	for _, l := range s.layers {
		sb.WriteString("\n# " + l.Step + "\n")
		for _, i := range l.Instructions {
			sb.WriteString(i.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
