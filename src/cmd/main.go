package main

import (
	"log"

	cfg "storefront/src/configuration"
	server "storefront/src/server"
)

func main() {
	config := cfg.ReadProperties()
	if err := server.RunServer(config); err != nil {
		log.Fatalf("storefront stopped: %v", err)
	}
}
