// Command generate-jwt issues a user JWT for local development and testing.
package main

import (
	"flag"
	"fmt"
	"log"

	"aimint-backend/internal/handlers"
)

func main() {
	address := flag.String("address", "", "requester address to embed in the token")
	flag.Parse()

	if *address == "" {
		log.Fatal("usage: generate-jwt -address 0x...")
	}

	token, err := handlers.GenerateJWTToken(*address)
	if err != nil {
		log.Fatalf("token generation failed: %v", err)
	}
	fmt.Println(token)
}
