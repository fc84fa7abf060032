// pixbackd is the pixiv bookmark and follow backup daemon: a single
// binary that is both the scheduler process and its own control CLI.
package main

import (
	"github.com/corvidae/pixback/internal/cmd"
)

func main() {
	cmd.Execute()
}
