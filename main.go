package main

import "github.com/robertobuso/pr-bills-tracker/cmd"

func main() {
	cmd.Execute()
}
