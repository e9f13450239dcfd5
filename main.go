package main

import "glyphsim/cmd"

func main() {
	cmd.Execute()
}
