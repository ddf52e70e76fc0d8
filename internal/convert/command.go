// Package convert turns a rendered SVG chart into PDF with an external tool.
// Native PDF output does not need this package; it exists for installations
// that prefer rsvg-convert's typesetting.
package convert

import (
	"context"
	"os/exec"
)

// CommandExecutor runs one prepared command.
type CommandExecutor interface {
	// Run executes the command and returns the combined output (stdout+stderr).
	Run() ([]byte, error)
}

// CommandBuilder prepares commands. Arguments are passed as a vector; no
// shell is involved.
type CommandBuilder interface {
	BuildCommand(ctx context.Context, name string, args ...string) CommandExecutor
}

// RealCommandExecutor wraps exec.Cmd to implement CommandExecutor.
type RealCommandExecutor struct {
	cmd *exec.Cmd
}

// Run executes the command and returns combined output.
func (r *RealCommandExecutor) Run() ([]byte, error) {
	return r.cmd.CombinedOutput()
}

// RealCommandBuilder implements CommandBuilder using exec.CommandContext.
type RealCommandBuilder struct{}

// BuildCommand creates a CommandExecutor bound to ctx.
func (RealCommandBuilder) BuildCommand(ctx context.Context, name string, args ...string) CommandExecutor {
	return &RealCommandExecutor{cmd: exec.CommandContext(ctx, name, args...)}
}

// MockCommandExecutor implements CommandExecutor for testing.
type MockCommandExecutor struct {
	Output    []byte
	Err       error
	RunCalled bool
}

// Run returns the configured output and error.
func (m *MockCommandExecutor) Run() ([]byte, error) {
	m.RunCalled = true
	return m.Output, m.Err
}

// MockBuiltCommand records details of a built command.
type MockBuiltCommand struct {
	Name string
	Args []string
}

// MockCommandBuilder records every command and hands out NextExecutor, or a
// fresh succeeding executor when it is nil.
type MockCommandBuilder struct {
	Commands     []MockBuiltCommand
	NextExecutor *MockCommandExecutor
	// OnRun, when set, is invoked in place of the executor for side effects
	// such as creating the output file.
	OnRun func(name string, args []string) ([]byte, error)
}

// BuildCommand records the command and returns an executor.
func (b *MockCommandBuilder) BuildCommand(_ context.Context, name string, args ...string) CommandExecutor {
	b.Commands = append(b.Commands, MockBuiltCommand{Name: name, Args: args})
	if b.OnRun != nil {
		return mockFunc(func() ([]byte, error) { return b.OnRun(name, args) })
	}
	if b.NextExecutor != nil {
		e := b.NextExecutor
		b.NextExecutor = nil
		return e
	}
	return &MockCommandExecutor{}
}

// LastCommand returns the most recently built command, or nil if none.
func (b *MockCommandBuilder) LastCommand() *MockBuiltCommand {
	if len(b.Commands) == 0 {
		return nil
	}
	return &b.Commands[len(b.Commands)-1]
}

type mockFunc func() ([]byte, error)

func (f mockFunc) Run() ([]byte, error) { return f() }
