package main

import "github.com/molbhav/molbhav/cmd"

func main() {
	cmd.Execute()
}
