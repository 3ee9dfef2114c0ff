// SPDX-License-Identifier: MPL-2.0

package container

import "io"

// teeWriter writes to w (when set) and keeps a copy in buf.
func teeWriter(w io.Writer, buf io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(w, buf)
}
