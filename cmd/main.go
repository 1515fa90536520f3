package main

import (
	"os"

	"github.com/nimbium/cirro/cmd/cirro"
)

func main() {
	if err := cirro.Execute(); err != nil {
		os.Exit(1)
	}
}
