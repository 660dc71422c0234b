package main

import (
	"os"

	"github.com/user/tmdb-ratelimit/internal/cmd"
)

func main() {
	// cobra already printed the error
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
