package main

import "github.com/strrl/focus-timer/cmd/focus-timer/commands"

func main() {
	commands.Execute()
}
