package main

import (
	"log"

	"github.com/PatrickEleganceGroup/issuerelay/cmd/relayctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
