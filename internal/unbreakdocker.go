package internal

import (
	"log/slog"
	"os"
	"os/exec"
)

// UnbreakDocker attaches the current container to a docker network shared
// with testcontainers so tests running inside a dev container can reach the
// containers they start. The network defaults to "bridge" and can be set with
// WEBAUTH_TEST_DOCKER_NETWORK. Outside of docker this does nothing.
func UnbreakDocker() {
	if _, err := os.Stat("/.dockerenv"); err != nil {
		return
	}

	network := os.Getenv("WEBAUTH_TEST_DOCKER_NETWORK")
	if network == "" {
		network = "bridge"
	}

	hostname, err := os.Hostname()
	if err != nil {
		return
	}

	// already attached is the common case and not worth more than a debug line
	if out, err := exec.Command("docker", "network", "connect", network, hostname).CombinedOutput(); err != nil {
		slog.Debug("can't join docker network", "network", network, "err", err, "output", string(out))
	}
}
