package main

import "github.com/mpapenbr/regatta-scoring-go/cmd"

func main() {
	cmd.Execute()
}
