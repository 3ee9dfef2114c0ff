// SPDX-License-Identifier: MPL-2.0

// Command svcpack packages an ASGI web service into a container image and
// runs it.
package main

import cmd "github.com/svcpack/svcpack/cmd/svcpack"

func main() {
	cmd.Execute()
}
