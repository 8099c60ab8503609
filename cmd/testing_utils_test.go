package cmd

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/emerald-finance/emerald/internal/configs"
	logger "github.com/emerald-finance/emerald/internal/logging"
	"github.com/emerald-finance/emerald/internal/models"
	"github.com/emerald-finance/emerald/internal/workflows"
)

// setupTestEnvironment points EMERALD_HOME at a temp dir and restores the
// global state afterwards.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("EMERALD_HOME", home)
	t.Setenv("NO_COLOR", "1")

	originalSettings := configs.EmeraldSettings
	t.Cleanup(func() {
		configs.EmeraldSettings = originalSettings
		ResetGlobalState()
		SetLogger(logger.Logger{})
	})
	return home
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	outputChan := make(chan string, 2)
	for _, r := range []io.Reader{stdoutReader, stderrReader} {
		go func(r io.Reader) {
			var buf bytes.Buffer
			if _, err := io.Copy(&buf, r); err != nil {
				log.Fatalf("Failed to run copy command: %s", err)
			}
			outputChan <- buf.String()
		}(r)
	}

	err := fn()

	stdoutWriter.Close()
	stderrWriter.Close()

	os.Stdout = originalStdout
	os.Stderr = originalStderr

	first := <-outputChan
	second := <-outputChan
	return first + second, err
}

// runCLI runs the emerald command line with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ResetGlobalState()
	RootCmd.SetArgs(args)
	return captureOutput(RootCmd.Execute)
}

// mustRunCLI runs the command line and fails the test on an error.
func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	output, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("emerald %s failed: %v\nOutput: %s", strings.Join(args, " "), err, output)
	}
	return output
}

// openTestWorkspace opens the workspace the commands use, for assertions.
func openTestWorkspace(t *testing.T) *workflows.Workspace {
	t.Helper()
	settings, err := configs.ResolveSettings()
	if err != nil {
		t.Fatalf("ResolveSettings failed: %v", err)
	}
	cfg, err := configs.LoadConfig(settings.ConfigPath())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	ws, err := workflows.Open(workflows.OpenOptions{Settings: settings, Config: cfg, Logger: logger.Discard(), NoSync: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return ws
}

// listContexts returns the stored contexts. The workspace is closed before
// returning so the next command can take the database lock.
func listContexts(t *testing.T) []models.ContextMeta {
	t.Helper()
	ws := openTestWorkspace(t)
	defer ws.Close()

	contexts, err := ws.Users.Contexts(context.Background())
	if err != nil {
		t.Fatalf("Contexts failed: %v", err)
	}
	return contexts
}

// onboardWithContext runs init and creates one context, which becomes active.
func onboardWithContext(t *testing.T, name string) string {
	t.Helper()
	mustRunCLI(t, "init", "--name", "Asha")
	mustRunCLI(t, "context", "add", name)
	for _, c := range listContexts(t) {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("Context %s was not created", name)
	return ""
}
