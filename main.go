package main

import (
	"github.com/julien-sobczak/nt-anki/cmd"
)

func main() {
	cmd.Execute()
}
