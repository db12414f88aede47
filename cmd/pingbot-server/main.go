package main

import "github.com/oshokin/pingbot/cmd/pingbot-server/cmd"

func main() {
	cmd.Execute()
}
