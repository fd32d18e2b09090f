package main

import "github.com/mikey/llm-phish-filter/internal/cli"

func main() {
	cli.Execute()
}
