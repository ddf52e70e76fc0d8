package convert

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/chrislowzhengxi/data-viz/internal/monitoring"
)

// RSVGConvert is the default converter binary.
const RSVGConvert = "rsvg-convert"

// Converter produces pdfPath from svgPath.
type Converter interface {
	Convert(ctx context.Context, svgPath, pdfPath string) error
}

// CommandConverter runs `rsvg-convert -f pdf -o <pdf> <svg>`.
type CommandConverter struct {
	Binary  string
	Builder CommandBuilder
	// LookPath checks the binary before running; nil uses exec.LookPath.
	LookPath func(string) (string, error)
}

// NewCommandConverter returns a converter for the real rsvg-convert.
func NewCommandConverter() *CommandConverter {
	return &CommandConverter{Binary: RSVGConvert, Builder: RealCommandBuilder{}}
}

// Args returns the argument vector passed to the binary.
func (c *CommandConverter) Args(svgPath, pdfPath string) []string {
	return []string{"-f", "pdf", "-o", pdfPath, svgPath}
}

// Convert runs the converter. A missing binary is reported with
// exec.ErrNotFound in the chain.
func (c *CommandConverter) Convert(ctx context.Context, svgPath, pdfPath string) error {
	bin := c.Binary
	if bin == "" {
		bin = RSVGConvert
	}
	lookPath := c.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if _, err := lookPath(bin); err != nil {
		return fmt.Errorf("pdf converter %s unavailable: %w", bin, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pdf conversion cancelled: %w", err)
	}

	args := c.Args(svgPath, pdfPath)
	monitoring.Debugf("running %s %s", bin, strings.Join(args, " "))
	out, err := c.Builder.BuildCommand(ctx, bin, args...).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", bin, err, msg)
		}
		return fmt.Errorf("%s failed: %w", bin, err)
	}
	return nil
}
