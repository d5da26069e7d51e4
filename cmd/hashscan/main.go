package main

import "github.com/y0ug/hashscan/internal/cli"

func main() {
	cli.Execute()
}
