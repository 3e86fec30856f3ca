package main

import "mspro-labs/coffee-prices/cmd"

func main() {
	cmd.Execute()
}
