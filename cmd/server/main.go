package main

import (
	"os"

	"github.com/rpattn/advfilters/internal/log"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
