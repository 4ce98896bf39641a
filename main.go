package main

import "lifeline/cmd"

func main() {
	cmd.Execute()
}
