package main

import "github.com/auditsuite/tasktimer/internal/cli"

func main() {
	cli.Execute()
}
