package main

import "seasonstay/cmd/server/cmd"

func main() {
	cmd.Execute()
}
