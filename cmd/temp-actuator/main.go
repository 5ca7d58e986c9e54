// Command temp-actuator periodically invokes a remote weather procedure and
// drives a GPIO pin low when the reported temperature exceeds a threshold.
package main

import (
	"log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
