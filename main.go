package main

import "github.com/soulnutri/dishscan/cmd"

func main() {
	cmd.Execute()
}
