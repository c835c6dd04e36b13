package main

import (
	"fmt"
	"os"

	"github.com/bobmcallan/tasktrace/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
