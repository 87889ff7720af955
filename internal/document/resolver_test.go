package document

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (model.DocumentRef, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(model.DocumentRef), args.Error(1)
}

func newTestResolver(f Fetcher) *Resolver {
	return NewResolver(ResolverOptions{
		ViewerBaseURL: "https://viewer.example/view",
		APIPrefix:     "/api",
	}, f, nil)
}

func TestClassify(t *testing.T) {
	tests := map[string]Kind{
		"https://sutra.oslpr.org/a/ley.pdf":         KindProxy,
		"https://sutra.oslpr.org/a/LEY.PDF":         KindProxy,
		"https://sutra.oslpr.org/a/informe.docx":    KindViewer,
		"https://sutra.oslpr.org/a/informe.doc?v=2": KindViewer,
		"https://sutra.oslpr.org/a/tabla.xlsx":      KindViewer,
		"https://sutra.oslpr.org/a/archivo.zip":     KindUnsupported,
		"https://sutra.oslpr.org/a/sin-extension":   KindUnsupported,
		"https://sutra.oslpr.org/a/ley.pdf#page=2":  KindProxy,
	}
	for raw, want := range tests {
		assert.Equal(t, want, Classify(raw), raw)
	}
}

func TestResolvePDFIsIdempotent(t *testing.T) {
	const docURL = "https://sutra.oslpr.org/media/ley 1.pdf"

	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, docURL).
		Return(model.DocumentRef{LinkURL: docURL, FilePath: "scraped_data/abc123.pdf", Downloaded: true}, nil).
		Once()

	r := newTestResolver(f)

	first, err := r.Resolve(context.Background(), docURL)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), docURL)
	require.NoError(t, err)

	f.AssertNumberOfCalls(t, "Fetch", 1)
	assert.Equal(t, first, second)

	assert.True(t, first.Downloaded)
	assert.True(t, first.Resolved())
	assert.Equal(t, "pdf", first.FileType)
	assert.Equal(t, "/api/proxy-document?url=https%3A%2F%2Fsutra.oslpr.org%2Fmedia%2Fley+1.pdf", first.ProxyURL)
	assert.Equal(t, "/api/serve-document/abc123.pdf", first.ServeURL)
	assert.Equal(t, "scraped_data/abc123.pdf", first.FilePath)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *outcomeRecorder) AddProxyBytes(int64) {}

func (o *outcomeRecorder) ObserveConversion(string, time.Duration) {}

func (o *outcomeRecorder) ObserveResolve(kind, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[outcome]++
}

func (o *outcomeRecorder) count(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[outcome]
}

func TestResolveConcurrentCallersShareFetch(t *testing.T) {
	const docURL = "https://sutra.oslpr.org/media/shared.pdf"
	const callers = 5

	fetching := make(chan struct{})
	release := make(chan struct{})
	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, docURL).
		Run(func(mock.Arguments) {
			close(fetching)
			<-release
		}).
		Return(model.DocumentRef{FilePath: "scraped_data/shared.pdf"}, nil)

	rec := &outcomeRecorder{outcomes: map[string]int{}}
	r := NewResolver(ResolverOptions{APIPrefix: "/api"}, f, rec)

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Add(1)
			_, err := r.Resolve(context.Background(), docURL)
			assert.NoError(t, err)
		}()
	}

	<-fetching
	require.Eventually(t, func() bool { return started.Load() == callers }, time.Second, time.Millisecond)
	// let the remaining callers reach the in-flight fetch
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	f.AssertNumberOfCalls(t, "Fetch", 1)
	assert.Equal(t, callers, rec.count("resolved"), "every caller waited on the same fetch")
	assert.Zero(t, rec.count("cache_hit"))

	_, ok := r.Cached(docURL)
	assert.True(t, ok)

	_, err := r.Resolve(context.Background(), docURL)
	require.NoError(t, err)
	f.AssertNumberOfCalls(t, "Fetch", 1)
	assert.Equal(t, 1, rec.count("cache_hit"))
}

func TestResolvePDFFetchFailureKeepsProxy(t *testing.T) {
	const docURL = "https://sutra.oslpr.org/media/roto.pdf"

	f := &mockFetcher{}
	f.On("Fetch", mock.Anything, docURL).Return(model.DocumentRef{}, errors.New("boom"))

	ref, err := newTestResolver(f).Resolve(context.Background(), docURL)
	require.NoError(t, err)
	assert.True(t, ref.Downloaded)
	assert.NotEmpty(t, ref.ProxyURL)
	assert.Empty(t, ref.ServeURL)
}

func TestResolveDocUsesViewerWithoutFetching(t *testing.T) {
	f := &mockFetcher{}
	r := newTestResolver(f)

	ref, err := r.Resolve(context.Background(), "https://sutra.oslpr.org/media/informe.doc")
	require.NoError(t, err)

	f.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	assert.True(t, ref.Downloaded)
	assert.Equal(t, "https://viewer.example/view?url=https%3A%2F%2Fsutra.oslpr.org%2Fmedia%2Finforme.doc&embedded=true", ref.ViewerURL)
	assert.Equal(t, "/api/convert-doc-to-docx?docUrl=https%3A%2F%2Fsutra.oslpr.org%2Fmedia%2Finforme.doc", ref.ConvertURL)
	assert.Empty(t, ref.ProxyURL)

	docx, err := r.Resolve(context.Background(), "https://sutra.oslpr.org/media/informe.docx")
	require.NoError(t, err)
	assert.NotEmpty(t, docx.ViewerURL)
	assert.Empty(t, docx.ConvertURL)
}

func TestResolveUnsupported(t *testing.T) {
	r := newTestResolver(nil)

	ref, err := r.Resolve(context.Background(), "https://sutra.oslpr.org/media/archivo.zip")
	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.False(t, ref.Downloaded)
	assert.NotEmpty(t, ref.Error)
	assert.Equal(t, model.DocumentFailed, ref.State)

	_, cached := r.Cached("https://sutra.oslpr.org/media/archivo.zip")
	assert.False(t, cached)
}

func TestResolveInvalidURL(t *testing.T) {
	r := newTestResolver(nil)

	for _, raw := range []string{"", "ftp://x/y.pdf", "/relative/y.pdf", "javascript:alert(1)"} {
		_, err := r.Resolve(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}
