package main

import (
	"fmt"
	"os"

	"github.com/certenio/ethprover/cmd/ethprover"
)

func main() {
	if err := ethprover.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
