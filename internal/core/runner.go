package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/DonovanMods/flowupdater/internal/domain"

	"github.com/charmbracelet/log"
)

const (
	DefaultJavaPath         = "java"
	DefaultJavaMaxHeap      = "256M"
	DefaultInstallerTimeout = 10 * time.Minute

	// maxStderrTail bounds how much installer stderr is kept for error reports
	maxStderrTail = 4096
)

// RunnerConfig configures a Runner. Zero values take the defaults above.
type RunnerConfig struct {
	JavaPath string
	MaxHeap  string
	Timeout  time.Duration
	Stdout   io.Writer // Default: os.Stdout
	Logger   *log.Logger
}

// RunResult describes a finished installer process
type RunResult struct {
	ExitCode int
	Stderr   string
	Duration time.Duration
}

// Runner launches installer jars with the Java runtime
type Runner struct {
	javaPath string
	maxHeap  string
	timeout  time.Duration
	stdout   io.Writer
	logger   *log.Logger
}

// NewRunner creates a Runner from cfg
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		javaPath: cfg.JavaPath,
		maxHeap:  cfg.MaxHeap,
		timeout:  cfg.Timeout,
		stdout:   cfg.Stdout,
		logger:   cfg.Logger,
	}
	if r.javaPath == "" {
		r.javaPath = DefaultJavaPath
	}
	if r.maxHeap == "" {
		r.maxHeap = DefaultJavaMaxHeap
	}
	if r.timeout <= 0 {
		r.timeout = DefaultInstallerTimeout
	}
	if r.stdout == nil {
		r.stdout = os.Stdout
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	return r
}

// Args returns the argument list passed to the Java runtime:
// -Xmx<heap> [jvmArgs] -jar <installer> --installClient <target> [flags]
func (r *Runner) Args(installerPath, targetDir string, jvmArgs, flags []string) []string {
	args := []string{"-Xmx" + r.maxHeap}
	args = append(args, jvmArgs...)
	args = append(args, "-jar", installerPath, "--installClient", targetDir)
	return append(args, flags...)
}

// Run executes the installer and waits for it to exit, at most for the configured timeout.
// Stdout is forwarded; stderr is captured for the error. A non-zero exit or a start failure
// is a *domain.ProcessError; a timeout kills the process and wraps domain.ErrProcessTimeout.
func (r *Runner) Run(ctx context.Context, installerPath, targetDir string, jvmArgs, flags []string) (*RunResult, error) {
	args := r.Args(installerPath, targetDir, jvmArgs, flags)
	result := &RunResult{}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.javaPath, args...)
	cmd.WaitDelay = 100 * time.Millisecond // Allow graceful shutdown after context cancel
	cmd.Dir = targetDir

	var stderr bytes.Buffer
	cmd.Stdout = r.stdout
	cmd.Stderr = &stderr

	r.logger.Info("running installer", "java", r.javaPath, "installer", installerPath, "target", targetDir)
	r.logger.Debug("installer command", "args", strings.Join(args, " "))

	start := time.Now()
	err := cmd.Run()
	result.Duration = time.Since(start)
	result.Stderr = tail(stderr.String(), maxStderrTail)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: installer exceeded %v: %s", domain.ErrProcessTimeout, r.timeout, installerPath)
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("running installer: %w", ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, &domain.ProcessError{
				Command:  r.javaPath,
				Started:  true,
				ExitCode: result.ExitCode,
				Stderr:   result.Stderr,
				Err:      err,
			}
		}

		result.ExitCode = -1
		return result, &domain.ProcessError{Command: r.javaPath, ExitCode: -1, Err: err}
	}

	r.logger.Debug("installer finished", "duration", result.Duration.Round(time.Millisecond))
	return result, nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
