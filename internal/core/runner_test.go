package core_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DonovanMods/flowupdater/internal/core"
	"github.com/DonovanMods/flowupdater/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeJava writes an executable shell script standing in for the java binary
func writeFakeJava(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "java")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(&bytes.Buffer{}, log.Options{})
}

func TestRunner_Args(t *testing.T) {
	r := core.NewRunner(core.RunnerConfig{})
	args := r.Args("/ws/forge-installer-patched.jar", "/game", nil, []string{"--nogui"})
	assert.Equal(t, []string{
		"-Xmx256M", "-jar", "/ws/forge-installer-patched.jar", "--installClient", "/game", "--nogui",
	}, args)

	r = core.NewRunner(core.RunnerConfig{MaxHeap: "1G"})
	args = r.Args("installer.jar", "/game", []string{"-Djava.awt.headless=true"}, nil)
	assert.Equal(t, []string{
		"-Xmx1G", "-Djava.awt.headless=true", "-jar", "installer.jar", "--installClient", "/game",
	}, args)
}

func TestRunner_Success(t *testing.T) {
	target := t.TempDir()
	argsFile := filepath.Join(target, "args.txt")
	java := writeFakeJava(t, `echo "$@" > `+argsFile+`
echo "installing client"
exit 0
`)

	var stdout bytes.Buffer
	r := core.NewRunner(core.RunnerConfig{JavaPath: java, Stdout: &stdout, Logger: quietLogger()})

	result, err := r.Run(context.Background(), "/ws/patched.jar", target, nil, []string{"--nogui"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, stdout.String(), "installing client")

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "-Xmx256M -jar /ws/patched.jar --installClient "+target+" --nogui", strings.TrimSpace(string(data)))
}

func TestRunner_NonZeroExit(t *testing.T) {
	java := writeFakeJava(t, `echo "Exception in thread main" >&2
exit 3
`)
	r := core.NewRunner(core.RunnerConfig{JavaPath: java, Stdout: &bytes.Buffer{}, Logger: quietLogger()})

	result, err := r.Run(context.Background(), "installer.jar", t.TempDir(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, 3, result.ExitCode)

	var procErr *domain.ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, 3, procErr.ExitCode)
	assert.Contains(t, procErr.Stderr, "Exception in thread main")
	assert.ErrorIs(t, err, domain.ErrProcessExecution)
	assert.Contains(t, err.Error(), "exited with code 3")
}

func TestRunner_StartFailure(t *testing.T) {
	r := core.NewRunner(core.RunnerConfig{
		JavaPath: filepath.Join(t.TempDir(), "no-such-java"),
		Logger:   quietLogger(),
	})

	result, err := r.Run(context.Background(), "installer.jar", t.TempDir(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)

	var procErr *domain.ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, -1, procErr.ExitCode)
	assert.False(t, procErr.Started)
	assert.ErrorIs(t, err, domain.ErrProcessExecution)
	assert.Contains(t, err.Error(), "starting ")
}

func TestRunner_KilledBySignal(t *testing.T) {
	java := writeFakeJava(t, "kill -KILL $$\n")
	r := core.NewRunner(core.RunnerConfig{JavaPath: java, Stdout: &bytes.Buffer{}, Logger: quietLogger()})

	result, err := r.Run(context.Background(), "installer.jar", t.TempDir(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)

	var procErr *domain.ProcessError
	require.ErrorAs(t, err, &procErr)
	assert.True(t, procErr.Started)
	assert.ErrorIs(t, err, domain.ErrProcessExecution)
	assert.Contains(t, err.Error(), "terminated: signal: killed")
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestRunner_Timeout(t *testing.T) {
	java := writeFakeJava(t, "sleep 10\n")
	r := core.NewRunner(core.RunnerConfig{
		JavaPath: java,
		Timeout:  100 * time.Millisecond,
		Stdout:   &bytes.Buffer{},
		Logger:   quietLogger(),
	})

	start := time.Now()
	_, err := r.Run(context.Background(), "installer.jar", t.TempDir(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProcessTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunner_Cancelled(t *testing.T) {
	java := writeFakeJava(t, "sleep 10\n")
	r := core.NewRunner(core.RunnerConfig{JavaPath: java, Stdout: &bytes.Buffer{}, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "installer.jar", t.TempDir(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrProcessTimeout)
}
