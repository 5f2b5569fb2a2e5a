package main

import "turfpix/cmd"

func main() {
	cmd.Execute()
}
