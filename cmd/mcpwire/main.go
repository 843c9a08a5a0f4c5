package main

import (
	"log"
	"os"
)

// version is set during build time
var version = "dev"

func main() {
	SetVersion(version)

	if err := Execute(); err != nil {
		log.Printf("Error executing command: %v", err)
		os.Exit(1)
	}
}
