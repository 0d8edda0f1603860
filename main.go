package main

import "github.com/storepulse/storepulse/cmd"

func main() {
	cmd.Execute()
}
