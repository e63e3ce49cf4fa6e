// Package testing spins up the ephemeral database containers the
// adapter integration tests run against. Containers get random host
// ports and are terminated through the returned cleanup function, so
// parallel test runs do not collide.
package testing

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
)

// ContainerCleanup terminates a test container. Defer it (or pass it
// to t.Cleanup) right after a successful Setup call.
type ContainerCleanup func()

func createCleanupFunc(ctx context.Context, container testcontainers.Container, containerType string) ContainerCleanup {
	return func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Printf("warning: failed to terminate %s container: %v\n", containerType, err)
		}
	}
}
