// cmd/hashtoken/main.go
package main

import (
	"fmt"
	"log"
	"os"

	"shelfsort/internal/auth"
)

// Prints the environment for an admin token given as the only argument.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hashtoken <token>")
		os.Exit(2)
	}

	hash, salt, err := auth.HashToken(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to hash token: %v", err)
	}
	fmt.Printf("ADMIN_TOKEN_HASH=%s\n", hash)
	fmt.Printf("ADMIN_TOKEN_SALT=%s\n", salt)
}
