package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/arena2api/arena2api/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
