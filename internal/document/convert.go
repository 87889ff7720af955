package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const maxStderrLen = 1000

// Source supplies the bytes of a remote document
type Source interface {
	FetchBytes(ctx context.Context, rawURL string) ([]byte, error)
}

// ConverterOptions configures a Converter
type ConverterOptions struct {
	// Command is the converter argv prefix, e.g. ["soffice"]
	Command []string
	Env     []string
	Timeout time.Duration
	TempDir string
}

// Converter turns legacy .doc files into .docx with a headless office suite
type Converter struct {
	opts     ConverterOptions
	source   Source
	recorder Recorder
}

// NewConverter creates a Converter
func NewConverter(opts ConverterOptions, source Source, recorder Recorder) *Converter {
	if len(opts.Command) == 0 {
		opts.Command = []string{"soffice"}
	}
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &Converter{opts: opts, source: source, recorder: recorder}
}

// Convert downloads sourceURL and returns it converted to DOCX. The temporary
// input and output files are removed on every path.
func (c *Converter) Convert(ctx context.Context, sourceURL string) ([]byte, error) {
	start := time.Now()

	data, err := c.source.FetchBytes(ctx, sourceURL)
	if err != nil {
		c.observe("fetch_error", start)
		return nil, err
	}

	base := TempName("doc", "")
	input := filepath.Join(c.opts.TempDir, base+".doc")
	output := filepath.Join(c.opts.TempDir, base+".docx")
	defer removeQuietly(input)
	defer removeQuietly(output)

	if err := os.WriteFile(input, data, 0o600); err != nil {
		c.observe("failed", start)
		return nil, fmt.Errorf("failed to write conversion input: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	args := append([]string{}, c.opts.Command[1:]...)
	args = append(args, "--headless", "--convert-to", "docx", "--outdir", c.opts.TempDir, input)

	cmd := exec.CommandContext(runCtx, c.opts.Command[0], args...)
	cmd.WaitDelay = 200 * time.Millisecond
	if len(c.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), c.opts.Env...)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Infof("converting %s to docx", sourceURL)
	runErr := cmd.Run()

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		c.observe("timeout", start)
		return nil, &ConversionTimeoutError{Timeout: c.opts.Timeout}
	}

	converted, err := os.ReadFile(output)
	if err != nil {
		c.observe("failed", start)
		if runErr == nil {
			runErr = err
		}
		log.Errorf("conversion of %s failed: %v", sourceURL, runErr)
		return nil, &ConversionFailedError{Stderr: truncate(stderr.String()), Err: runErr}
	}
	if runErr != nil {
		log.Warnf("converter exited with %v but produced %s", runErr, filepath.Base(output))
	}

	c.observe("success", start)
	return converted, nil
}

func (c *Converter) observe(outcome string, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveConversion(outcome, time.Since(start))
	}
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxStderrLen {
		return s
	}
	return s[:maxStderrLen]
}
