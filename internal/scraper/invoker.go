package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
)

// Scripts understood by the built-in scraper
const (
	ScriptFast     = "fast"
	ScriptFull     = "full"
	ScriptDocument = "document"
	ScriptByDate   = "by-date"
)

// waitDelay bounds how long Wait blocks on inherited pipes after a kill
const waitDelay = 200 * time.Millisecond

// unsafeArgChars matches everything outside the argument allow-list
var unsafeArgChars = regexp.MustCompile(`[^\w\-:/.?=&%]`)

// SanitizeArg strips characters outside [\w-:/.?=&%]. The result is safe to
// hand to a process but is not guaranteed to still be a valid URL.
func SanitizeArg(raw string) string {
	return unsafeArgChars.ReplaceAllString(raw, "")
}

// Recorder receives one observation per invocation
type Recorder interface {
	ObserveScrape(script, outcome string, elapsed time.Duration)
}

// Invoker runs external scraper processes and decodes their JSON output
type Invoker struct {
	command  []string
	env      []string
	recorder Recorder
}

// NewInvoker creates an Invoker. command is the argv prefix; the script
// name and sanitized arguments are appended to it.
func NewInvoker(command []string, recorder Recorder) *Invoker {
	return &Invoker{
		command:  command,
		recorder: recorder,
	}
}

// WithEnv adds environment variables to every spawned process
func (i *Invoker) WithEnv(env ...string) *Invoker {
	i.env = append(i.env, env...)
	return i
}

// Run executes script with args and returns its stdout as a JSON document.
// A timeout of zero means no timeout.
func (i *Invoker) Run(ctx context.Context, script string, args []string, timeout time.Duration) (json.RawMessage, error) {
	if len(i.command) == 0 {
		return nil, fmt.Errorf("scraper command is not configured")
	}

	argv := append([]string{}, i.command[1:]...)
	argv = append(argv, script)
	for _, arg := range args {
		clean := SanitizeArg(arg)
		if clean != arg {
			log.Warnf("scraper %s: argument sanitized: %q -> %q", script, arg, clean)
		}
		argv = append(argv, clean)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, i.command[0], argv...)
	cmd.WaitDelay = waitDelay
	if len(i.env) > 0 {
		cmd.Env = append(os.Environ(), i.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	log.Infof("Executing scraper %s with %d args", script, len(args))
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		perr := &ProcessError{
			Script:   script,
			ExitCode: -1,
			Stderr:   truncate(stderr.String()),
			Err:      err,
		}
		if timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			perr.Timeout = true
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		i.observe(script, perr.Code(), elapsed)
		log.Errorf("scraper %s failed after %s: %v", script, elapsed, perr)
		return nil, perr
	}

	raw, err := ExtractJSON(stdout.Bytes())
	if err != nil {
		if errors.Is(err, errEmptyOutput) {
			i.observe(script, "EMPTY_OUTPUT", elapsed)
			return nil, &EmptyOutputError{Script: script, Stderr: truncate(stderr.String())}
		}
		i.observe(script, "PARSE_ERROR", elapsed)
		log.Errorf("scraper %s produced unparseable output: %v", script, err)
		return nil, &OutputParseError{Script: script, Output: truncate(stdout.String()), Err: err}
	}

	i.observe(script, "success", elapsed)
	log.Infof("scraper %s completed in %s", script, elapsed)
	return raw, nil
}

// RunInto runs script and unmarshals its output into v
func (i *Invoker) RunInto(ctx context.Context, script string, args []string, timeout time.Duration, v any) error {
	raw, err := i.Run(ctx, script, args, timeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &OutputParseError{Script: script, Output: truncate(string(raw)), Err: err}
	}
	return nil
}

// Invoke runs a bill scraper and decodes a ScrapeResult
func (i *Invoker) Invoke(ctx context.Context, script string, args []string, timeout time.Duration) (*model.ScrapeResult, error) {
	var result model.ScrapeResult
	if err := i.RunInto(ctx, script, args, timeout, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (i *Invoker) observe(script, outcome string, elapsed time.Duration) {
	if i.recorder != nil {
		i.recorder.ObserveScrape(script, outcome, elapsed)
	}
}

var errEmptyOutput = errors.New("empty output")

// ExtractJSON returns stdout as a JSON document. Scripts sometimes interleave
// log lines with their JSON, so when strict parsing fails the text between the
// first '{' and the last '}' is tried before giving up.
func ExtractJSON(stdout []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return nil, errEmptyOutput
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed), nil
	}

	start := bytes.IndexByte(trimmed, '{')
	end := bytes.LastIndexByte(trimmed, '}')
	if start >= 0 && end > start {
		candidate := trimmed[start : end+1]
		if json.Valid(candidate) {
			return json.RawMessage(candidate), nil
		}
	}

	var probe any
	err := json.Unmarshal(trimmed, &probe)
	return nil, fmt.Errorf("no JSON document in output: %w", err)
}
