package main

import "scalpExecutor/internal/cli"

func main() {
	cli.Execute()
}
