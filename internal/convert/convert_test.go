package convert

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func found(name string) (string, error) { return "/usr/bin/" + name, nil }

func TestCommandConverter_Args(t *testing.T) {
	b := &MockCommandBuilder{}
	c := &CommandConverter{Binary: RSVGConvert, Builder: b, LookPath: found}

	require.NoError(t, c.Convert(context.Background(), "out/chart.svg", "out/chart.pdf"))

	last := b.LastCommand()
	require.NotNil(t, last)
	assert.Equal(t, "rsvg-convert", last.Name)
	assert.Equal(t, []string{"-f", "pdf", "-o", "out/chart.pdf", "out/chart.svg"}, last.Args)
}

func TestCommandConverter_DefaultsBinary(t *testing.T) {
	b := &MockCommandBuilder{}
	c := &CommandConverter{Builder: b, LookPath: found}

	require.NoError(t, c.Convert(context.Background(), "a.svg", "a.pdf"))
	assert.Equal(t, RSVGConvert, b.LastCommand().Name)
}

func TestCommandConverter_MissingBinary(t *testing.T) {
	b := &MockCommandBuilder{}
	c := &CommandConverter{
		Binary:   "rsvg-convert",
		Builder:  b,
		LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	}

	err := c.Convert(context.Background(), "a.svg", "a.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
	assert.Nil(t, b.LastCommand(), "nothing should run when the binary is missing")
}

func TestCommandConverter_RealLookPathMissing(t *testing.T) {
	c := &CommandConverter{Binary: "definitely-not-a-real-converter-binary", Builder: RealCommandBuilder{}}
	err := c.Convert(context.Background(), "a.svg", "a.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestCommandConverter_FailureIncludesOutput(t *testing.T) {
	b := &MockCommandBuilder{NextExecutor: &MockCommandExecutor{
		Output: []byte("Error reading SVG: no such file\n"),
		Err:    errors.New("exit status 1"),
	}}
	c := &CommandConverter{Builder: b, LookPath: found}

	err := c.Convert(context.Background(), "missing.svg", "out.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Contains(t, err.Error(), "Error reading SVG")
}

func TestCommandConverter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &MockCommandBuilder{}
	c := &CommandConverter{Builder: b, LookPath: found}

	err := c.Convert(ctx, "a.svg", "a.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Nil(t, b.LastCommand())
}

func TestMockCommandBuilder_OnRun(t *testing.T) {
	var ran []string
	b := &MockCommandBuilder{OnRun: func(name string, args []string) ([]byte, error) {
		ran = append(ran, name)
		return nil, nil
	}}
	_, err := b.BuildCommand(context.Background(), "rsvg-convert").Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"rsvg-convert"}, ran)
}

func TestNewCommandConverter(t *testing.T) {
	c := NewCommandConverter()
	assert.Equal(t, RSVGConvert, c.Binary)
	assert.IsType(t, RealCommandBuilder{}, c.Builder)
}
