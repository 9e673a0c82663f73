package main

import (
	"fmt"
	"os"
	"testing"

	"github.com/asheshgoplani/revlog/internal/config"
)

// TestMain keeps the CLI tests away from the user's ~/.revlog.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "revlog-cmd-test-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Setenv(config.HomeEnv, dir)

	code := m.Run()

	os.RemoveAll(dir)
	os.Exit(code)
}
