package main

import "handbook-chat/cmd/handbook/cmd"

func main() {
	cmd.Execute()
}
