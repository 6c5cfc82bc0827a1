package zfs

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// RunCmdFn runs a complete command line and returns its stdout.
type RunCmdFn func(string) (string, error)

// ExecFn runs a program with explicit arguments and returns its combined
// output.
type ExecFn func(name string, args ...string) ([]byte, error)

// RunCmdError is returned when a command exits unsuccessfully
type RunCmdError struct {
	Cmd    string
	Stdout string
	Stderr string
	Err    error
}

func (rce *RunCmdError) Error() string {
	if ee, ok := rce.Err.(*exec.ExitError); ok {
		return fmt.Sprintf("%s: %s: stdout: %s; stderr: %s", rce.Cmd,
			ee.ProcessState, strings.TrimSpace(rce.Stdout), strings.TrimSpace(rce.Stderr))
	}
	return fmt.Sprintf("%s: %s: stdout: %s", rce.Cmd, rce.Err, strings.TrimSpace(rce.Stdout))
}

func (rce *RunCmdError) Unwrap() error {
	return rce.Err
}

// ExitCode returns the command's exit status, or -1 if it did not run to
// completion.
func (rce *RunCmdError) ExitCode() int {
	if ee, ok := rce.Err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}

// Run executes cmd through the shell so the command text is exactly what an
// operator would type.
func Run(cmd string) (string, error) {
	var stdout, stderr bytes.Buffer

	c := exec.Command("sh", "-c", cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return stdout.String(), &RunCmdError{
			Cmd:    cmd,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return stdout.String(), nil
}

// Exec runs name with args and returns its combined output
func Exec(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}
