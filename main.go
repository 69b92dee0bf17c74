package main

import "github.com/rolegate/rolegate/cmd"

func main() {
	cmd.Execute()
}
