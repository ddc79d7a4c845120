package main

import "github.com/nfrund/supportchat/cmd/chatctl/cmd"

func main() {
	cmd.Execute()
}
