package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	var exitErr exitError
	if errors.As(err, &exitErr) {
		if exitErr.message != "" {
			fmt.Fprintln(os.Stderr, exitErr.message)
		}
		os.Exit(exitErr.code)
	}
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
