package main

import "AgentEngine/cmd"

func main() {
	cmd.Execute()
}
