package main

import "github.com/Siddhant-K-code/cabinets/cmd"

func main() {
	cmd.Execute()
}
