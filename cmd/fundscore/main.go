package main

import "fundscore/internal/cli"

func main() {
	cli.Execute()
}
