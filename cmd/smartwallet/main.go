package main

import "github.com/sigweihq/smartwallet/cmd/smartwallet/cmd"

func main() {
	cmd.Execute()
}
