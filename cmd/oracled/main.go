package main

import (
	"fmt"
	"os"
)

func main() {
	if err := execute(NewRootCmd()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
