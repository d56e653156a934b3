package main

import (
	"os"

	tastescmder "github.com/papercomputeco/tastes/cmd/tastes"
)

func main() {
	cmd := tastescmder.NewTastesCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
