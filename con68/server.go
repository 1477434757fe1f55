// =============================================================================
// server.go - Emulator Server Discovery and Launch
// =============================================================================
//
// Handles finding and launching the emulator server process. By default the
// CLI connects to a server that is already listening. With --server (or the
// CON68_SERVER environment variable) it launches the named executable when
// nothing answers on the port, and waits for the port to open.
//
// The server executable is searched for in this order:
//   1. The path given with --server or CON68_SERVER, if it contains a slash
//   2. The same directory as the con68 binary
//   3. $PATH
//   4. /usr/local/bin and ~/.local/bin
//
// When the CLI launches a server it remembers the PID and sends SIGTERM on
// exit. A server that was already running is left alone.
//
// =============================================================================

package main

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// serverEnvVar names the emulator server executable.
	serverEnvVar = "CON68_SERVER"

	// serverStartTimeout is how long to wait for a launched server to
	// start listening.
	serverStartTimeout = 4 * time.Second

	// serverPollInterval is how often the port is probed during startup.
	serverPollInterval = 100 * time.Millisecond

	// probeTimeout bounds a single connection attempt to the port.
	probeTimeout = 200 * time.Millisecond
)

// serverName returns the executable requested on the command line, or the
// one named by CON68_SERVER.
func serverName(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(serverEnvVar)
}

// launchServer starts the server executable and waits until addr accepts
// connections. It returns the server's PID.
//
// The server's output is discarded to keep the test report readable.
func launchServer(name, addr string) (pid int, err error) {
	exePath, err := findServerExecutable(name)
	if err != nil {
		return 0, fmt.Errorf("could not find server executable: %w", err)
	}

	cmd := exec.Command(exePath)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to launch %s: %w", exePath, err)
	}

	pid = cmd.Process.Pid

	// Reap the process when it exits so it does not linger as a zombie.
	go cmd.Wait()

	if err := waitForPort(addr, serverStartTimeout); err != nil {
		return pid, fmt.Errorf("%s started (PID: %d) but is not listening: %w", filepath.Base(exePath), pid, err)
	}
	return pid, nil
}

// findServerExecutable resolves name to the full path of an executable.
func findServerExecutable(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("no server executable configured (use --server or %s)", serverEnvVar)
	}

	// An explicit path is used as given.
	if strings.ContainsRune(name, filepath.Separator) {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s is not an executable file", name)
	}

	if selfPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(selfPath), name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	commonPaths := []string{
		"/usr/local/bin",
		filepath.Join(homeDir(), ".local", "bin"),
	}
	for _, dir := range commonPaths {
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%s not found in PATH or common locations", name)
}

// isListening reports whether something accepts TCP connections on addr.
func isListening(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// waitForPort polls addr until it accepts connections or timeout passes.
func waitForPort(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if isListening(addr) {
			return nil
		}
		time.Sleep(serverPollInterval)
	}
	return fmt.Errorf("timeout waiting for %s", addr)
}

// isExecutable checks if a file exists and is executable.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Mode().Perm()&0111 != 0
}

// homeDir returns the current user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}
