package main

import "lockpilot/cmd/lockpilotctl/arg"

func main() {
	arg.Execute()
}
