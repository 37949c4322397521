// Package main is the entry point of the memsim command.
package main

import "github.com/sarchlab/memsim/memsim/cmd"

func main() {
	cmd.Execute()
}
