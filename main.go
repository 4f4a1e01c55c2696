package main

import "github.com/skidoodle/radio-sync/internal/cli"

func main() {
	cli.Execute()
}
