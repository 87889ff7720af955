package document

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"golang.org/x/sync/singleflight"
)

// Kind is the retrieval strategy for a document
type Kind string

const (
	KindViewer      Kind = "viewer"
	KindProxy       Kind = "proxy"
	KindUnsupported Kind = "unsupported"
)

var viewerExtensions = map[string]bool{
	"doc": true, "docx": true,
	"ppt": true, "pptx": true,
	"xls": true, "xlsx": true,
}

// Classify picks a retrieval strategy from the URL's trailing extension
func Classify(rawURL string) Kind {
	ext := Extension(rawURL)
	switch {
	case viewerExtensions[ext]:
		return KindViewer
	case ext == "pdf":
		return KindProxy
	default:
		return KindUnsupported
	}
}

// Fetcher downloads a document to local storage
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (model.DocumentRef, error)
}

// ResolverOptions configures a Resolver
type ResolverOptions struct {
	ViewerBaseURL string
	// APIPrefix is prepended to internal endpoint references, e.g. "/api"
	APIPrefix string
}

// Resolver turns document URLs into actionable DocumentRefs. Resolved refs
// are cached by URL and concurrent lookups of one URL share a single fetch.
type Resolver struct {
	opts     ResolverOptions
	fetcher  Fetcher
	recorder Recorder

	mu    sync.RWMutex
	cache map[string]model.DocumentRef
	group singleflight.Group
}

// NewResolver creates a Resolver. fetcher may be nil, in which case proxied
// documents are never downloaded locally.
func NewResolver(opts ResolverOptions, fetcher Fetcher, recorder Recorder) *Resolver {
	if opts.ViewerBaseURL == "" {
		opts.ViewerBaseURL = "https://docs.google.com/viewer"
	}
	return &Resolver{
		opts:     opts,
		fetcher:  fetcher,
		recorder: recorder,
		cache:    make(map[string]model.DocumentRef),
	}
}

// Cached returns the resolved ref for rawURL, if any
func (r *Resolver) Cached(rawURL string) (model.DocumentRef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.cache[rawURL]
	return ref, ok
}

// Resolve returns an actionable reference for rawURL. Unsupported types
// come back with Error set, Downloaded false and ErrUnsupportedType.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (model.DocumentRef, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !isHTTPURL(rawURL) {
		return model.DocumentRef{LinkURL: rawURL, State: model.DocumentFailed, Error: "Invalid document URL"},
			fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	kind := Classify(rawURL)
	if ref, ok := r.Cached(rawURL); ok {
		r.observe(kind, "cache_hit")
		return ref, nil
	}

	v, err, _ := r.group.Do(rawURL, func() (any, error) {
		if ref, ok := r.Cached(rawURL); ok {
			return ref, nil
		}
		ref, err := r.resolve(ctx, rawURL, kind)
		if err != nil {
			return ref, err
		}
		r.mu.Lock()
		r.cache[rawURL] = ref
		r.mu.Unlock()
		return ref, nil
	})

	ref := v.(model.DocumentRef)
	if err != nil {
		r.observe(kind, "failed")
		return ref, err
	}
	r.observe(kind, "resolved")
	return ref, nil
}

func (r *Resolver) resolve(ctx context.Context, rawURL string, kind Kind) (model.DocumentRef, error) {
	ext := Extension(rawURL)
	ref := model.DocumentRef{
		LinkURL:  rawURL,
		FileType: ext,
	}

	switch kind {
	case KindViewer:
		ref.ViewerURL = r.ViewerURL(rawURL)
		if ext == "doc" {
			ref.ConvertURL = r.opts.APIPrefix + "/convert-doc-to-docx?docUrl=" + url.QueryEscape(rawURL)
		}

	case KindProxy:
		ref.ProxyURL = r.ProxyURL(rawURL)
		if r.fetcher != nil {
			fetched, err := r.fetcher.Fetch(ctx, rawURL)
			if err != nil {
				log.Warnf("document fetch failed, falling back to proxy for %s: %v", rawURL, err)
			} else if fetched.FilePath != "" {
				ref.FilePath = fetched.FilePath
				ref.ServeURL = r.opts.APIPrefix + "/serve-document/" + url.PathEscape(filepath.Base(fetched.FilePath))
				ref.TextExtracted = fetched.TextExtracted
			}
		}

	default:
		ref.State = model.DocumentFailed
		ref.Error = fmt.Sprintf("Unsupported document type: %q", ext)
		return ref, fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}

	ref.Downloaded = true
	ref.State = model.DocumentResolved
	return ref, nil
}

// ViewerURL returns the external viewer page for rawURL
func (r *Resolver) ViewerURL(rawURL string) string {
	return r.opts.ViewerBaseURL + "?url=" + url.QueryEscape(rawURL) + "&embedded=true"
}

// ProxyURL returns the internal proxy endpoint for rawURL
func (r *Resolver) ProxyURL(rawURL string) string {
	return r.opts.APIPrefix + "/proxy-document?url=" + url.QueryEscape(rawURL)
}

func (r *Resolver) observe(kind Kind, outcome string) {
	if r.recorder != nil {
		r.recorder.ObserveResolve(string(kind), outcome)
	}
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
