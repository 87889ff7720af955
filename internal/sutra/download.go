package sutra

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	downloadTimeout     = 60 * time.Second
	downloadConcurrency = 4
)

// Document downloads a single document into the documents directory as
// md5(url)+ext. An existing file is reused.
func (s *Scraper) Document(ctx context.Context, docURL string) model.DocumentRef {
	ref := model.DocumentRef{
		LinkURL:     docURL,
		Description: path.Base(docURL),
		FileType:    strings.TrimPrefix(documentExt(docURL), "."),
	}

	target, err := s.download(ctx, docURL)
	if err != nil {
		log.Errorf("error processing document %s: %v", docURL, err)
		ref.Error = err.Error()
		ref.State = model.DocumentFailed
		return ref
	}

	ref.FilePath = target
	ref.Downloaded = true
	ref.State = model.DocumentResolved
	return ref
}

// LocalPath returns where Document stores docURL
func (s *Scraper) LocalPath(docURL string) string {
	sum := md5.Sum([]byte(docURL))
	return filepath.Join(s.documentsDir, hex.EncodeToString(sum[:])+documentExt(docURL))
}

func (s *Scraper) download(ctx context.Context, docURL string) (string, error) {
	target := s.LocalPath(docURL)
	if _, err := os.Stat(target); err == nil {
		return target, nil
	}
	if err := os.MkdirAll(s.documentsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create documents directory: %w", err)
	}

	log.Infof("downloading document: %s", docURL)

	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	client := &http.Client{Transport: s.transport}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", docURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", docURL, resp.StatusCode)
	}

	// Write to a sibling temp file so a failed download never leaves a
	// truncated document under the final name.
	tmp, err := os.CreateTemp(s.documentsDir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to save %s: %w", docURL, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", docURL, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", docURL, err)
	}

	log.Infof("downloaded document to %s", target)
	return target, nil
}

// downloadEventoDocuments fetches every document referenced by eventos,
// updating the refs in place.
func (s *Scraper) downloadEventoDocuments(ctx context.Context, eventos []model.Evento) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)

	for i := range eventos {
		for j := range eventos[i].Documents {
			ref := &eventos[i].Documents[j]
			g.Go(func() error {
				*ref = mergeDownload(*ref, s.Document(ctx, ref.LinkURL))
				return nil
			})
		}
	}
	_ = g.Wait()
}

func mergeDownload(ref, downloaded model.DocumentRef) model.DocumentRef {
	ref.Downloaded = downloaded.Downloaded
	ref.FilePath = downloaded.FilePath
	ref.FileType = downloaded.FileType
	ref.State = downloaded.State
	ref.Error = downloaded.Error
	return ref
}

// documentExt returns the lower-cased extension of the URL path, or .bin
func documentExt(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return ".bin"
	}
	return ext
}
