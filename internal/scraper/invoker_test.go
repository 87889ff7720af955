package scraper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperProcess is not a real test. It is re-executed by the invoker
// tests as a stand-in scraper.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_SCRAPER_HELPER") != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(3)
	}
	script, rest := args[1], args[2:]

	switch script {
	case "ok":
		fmt.Print(`{"success":true,"measure_number":"P. de la C. 1000","eventos":[{"descripcion":"Radicado","fecha":"01/15/2024","tipo":"tramite"}],"scrape_time":0.4}`)
	case "noisy":
		fmt.Println("Loading page...")
		fmt.Print(`{"eventos":[]}`)
		fmt.Println("done")
	case "echo":
		fmt.Printf(`{"args":%q}`, strings.Join(rest, " "))
	case "garbage":
		fmt.Print("not json at all")
	case "empty":
	case "fail":
		fmt.Fprint(os.Stderr, strings.Repeat("x", 5000))
		os.Exit(2)
	case "sleep":
		time.Sleep(30 * time.Second)
	}
	os.Exit(0)
}

func helperInvoker(rec Recorder) *Invoker {
	return NewInvoker([]string{os.Args[0], "-test.run=TestHelperProcess", "--"}, rec).
		WithEnv("GO_WANT_SCRAPER_HELPER=1")
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (f *fakeRecorder) ObserveScrape(script, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, script+":"+outcome)
}

func TestInvokeDecodesResult(t *testing.T) {
	rec := &fakeRecorder{}
	result, err := helperInvoker(rec).Invoke(context.Background(), "ok", nil, 5*time.Second)
	require.NoError(t, err)

	require.NotNil(t, result.MeasureNumber)
	assert.Equal(t, "P. de la C. 1000", *result.MeasureNumber)
	require.Len(t, result.Eventos, 1)
	assert.Equal(t, "Radicado", result.Eventos[0].Descripcion)
	assert.Equal(t, []string{"ok:success"}, rec.outcomes)
}

func TestRunRecoversJSONFromNoisyOutput(t *testing.T) {
	raw, err := helperInvoker(nil).Run(context.Background(), "noisy", nil, 5*time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"eventos":[]}`, string(raw))
}

func TestRunSanitizesArguments(t *testing.T) {
	var out struct {
		Args string `json:"args"`
	}
	err := helperInvoker(nil).RunInto(context.Background(), "echo",
		[]string{"https://sutra.oslpr.org/medidas/123;rm -rf /", "--no-extract"}, 5*time.Second, &out)
	require.NoError(t, err)
	assert.Equal(t, "https://sutra.oslpr.org/medidas/123rm-rf/ --no-extract", out.Args)
}

func TestRunTimeout(t *testing.T) {
	rec := &fakeRecorder{}
	timeout := 500 * time.Millisecond

	start := time.Now()
	_, err := helperInvoker(rec).Run(context.Background(), "sleep", nil, timeout)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, CodeTimeout, perr.Code())
	assert.Less(t, elapsed, timeout+2*time.Second)
	assert.Equal(t, []string{"sleep:TIMEOUT"}, rec.outcomes)
}

func TestRunProcessFailureTruncatesStderr(t *testing.T) {
	_, err := helperInvoker(nil).Run(context.Background(), "fail", nil, 5*time.Second)

	var perr *ProcessError
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Timeout)
	assert.Equal(t, 2, perr.ExitCode)
	assert.Len(t, perr.Stderr, maxDiagnosticLen)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestRunEmptyOutput(t *testing.T) {
	_, err := helperInvoker(nil).Run(context.Background(), "empty", nil, 5*time.Second)

	var eerr *EmptyOutputError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, "EMPTY_OUTPUT", eerr.Code())
}

func TestRunUnparseableOutput(t *testing.T) {
	_, err := helperInvoker(nil).Run(context.Background(), "garbage", nil, 5*time.Second)

	var perr *OutputParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "not json at all", perr.Output)
}

func TestRunWithoutCommand(t *testing.T) {
	_, err := NewInvoker(nil, nil).Run(context.Background(), "fast", nil, time.Second)
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "strict", input: `{"a":1}`, want: `{"a":1}`},
		{name: "surrounding whitespace", input: "\n  {\"a\":1}\n", want: `{"a":1}`},
		{name: "leading log lines", input: "INFO starting\n{\"a\":{\"b\":2}}", want: `{"a":{"b":2}}`},
		{name: "trailing text", input: `{"a":1} bye`, want: `{"a":1}`},
		{name: "array", input: `[1,2]`, want: `[1,2]`},
		{name: "no braces", input: "hello", wantErr: true},
		{name: "broken json", input: "x {\"a\": } y", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestSanitizeArg(t *testing.T) {
	assert.Equal(t, "https://sutra.oslpr.org/medidas?id=1&x=%20", SanitizeArg("https://sutra.oslpr.org/medidas?id=1&x=%20"))
	assert.Equal(t, "abc", SanitizeArg("a`b$c"))
	assert.Equal(t, "2024-03-15", SanitizeArg("2024-03-15"))
	assert.Equal(t, "", SanitizeArg("'\"; |"))
}
