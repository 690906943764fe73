package main

import "github.com/snore/snore-cli/internal/cli"

func main() {
	cli.Execute()
}
