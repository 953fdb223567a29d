package main

import (
	"log"

	approuters "github.com/ifion/MedSystem-sub000/internal/app_routers"
	"github.com/ifion/MedSystem-sub000/internal/configuration"
)

func main() {
	container, err := configuration.BuildContainer()
	if err != nil {
		log.Fatalf("Failed to build container: %v", err)
	}

	// Ensure cleanup on shutdown
	defer container.Close()

	// Setup routers
	approuters.StartServer(container)
}
