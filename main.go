// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/gigantum/gtm/cmd/gtm"

func main() {
	cmd.Execute()
}
