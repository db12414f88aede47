package main

import "github.com/oshokin/pingbot/cmd/pingbot-watch/cmd"

func main() {
	cmd.Execute()
}
