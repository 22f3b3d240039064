package main

import "github.com/fakeyudi/pomo/cmd"

func main() {
	cmd.Execute()
}
