package main

import (
	"os"

	"chatd/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
