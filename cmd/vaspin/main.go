package main

import "github.com/askeland/vaspin/cmd"

func main() {
	cmd.Execute()
}
