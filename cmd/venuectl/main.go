// Command venuectl inspects a venue topology offline: it validates the graph,
// plans routes and prints crowd snapshots and alerts without a running server.
package main

import (
	"log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("venuectl: %v", err)
	}
}
