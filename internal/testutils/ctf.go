package testutils

import (
	"os"
	"sync"
	"testing"
)

// DockerTestsEnv enables the tests that start containers.
const DockerTestsEnv = "HARNESS_DOCKER_TESTS"

var (
	// DefaultNetworkOnce is a sync.Once instance that ensures the CTF framework only sets up the
	// DefaultNetwork once.
	DefaultNetworkOnce = &sync.Once{}
)

// SkipWithoutDocker skips t unless DockerTestsEnv is set.
func SkipWithoutDocker(t *testing.T) {
	t.Helper()

	if os.Getenv(DockerTestsEnv) == "" {
		t.Skipf("set %s=1 to run tests that start Docker containers", DockerTestsEnv)
	}
}
