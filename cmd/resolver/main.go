package main

import (
	"log"

	"github.com/k8ika0s/wheel-resolver/internal/service"
)

func main() {
	if err := service.Run(); err != nil {
		log.Fatalf("resolver exited: %v", err)
	}
}
