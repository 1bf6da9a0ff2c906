package execution

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
)

// RunSpec describes one sandboxed script run.
type RunSpec struct {
	Browser    string
	ScriptPath string
	OutputDir  string
}

// RunOutput is what a finished (or killed) run produced.
type RunOutput struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes a compiled script in an isolated environment.
type Runner interface {
	Run(ctx context.Context, spec RunSpec) (RunOutput, error)
}

// SubprocessRunner runs the automation binary as a child process with
// captured output. Cancelling the context kills the process.
type SubprocessRunner struct {
	// ExecPath is the automation runner binary.
	ExecPath string
	// Env entries are appended to the inherited environment.
	Env []string
}

func (r *SubprocessRunner) Run(ctx context.Context, spec RunSpec) (RunOutput, error) {
	args := []string{
		"--browser", spec.Browser,
		"--script", spec.ScriptPath,
		"--output-dir", spec.OutputDir,
	}
	cmd := exec.CommandContext(ctx, r.ExecPath, args...) //nolint:gosec

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	err := cmd.Run()
	out := RunOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return out, nil
	}

	if ctx.Err() != nil {
		out.ExitCode = -1
		return out, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Non-zero exit is a test verdict, not a runner failure.
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, err
}
