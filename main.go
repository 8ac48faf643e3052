package main

import "github.com/AvaProtocol/ap-oracle/cmd"

func main() {
	cmd.Execute()
}
