package pkgfetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/open-edge-platform/ossa-collector/internal/utils/logger"
	"github.com/open-edge-platform/ossa-collector/internal/utils/network"
	"github.com/schollz/progressbar/v3"
)

// Job is one file to download. SHA256 is optional; when set the
// downloaded bytes must match it.
type Job struct {
	URL    string
	SHA256 string
}

// StatusError reports a non-200 answer from the server.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// ProgressOutput receives the progress bar. Set to io.Discard to silence it.
var ProgressOutput io.Writer = os.Stderr

// FetchPackages downloads jobs into destDir using a pool of workers and
// returns the local paths in job order. A nil client gets a secure default.
// Every job is attempted; failures are joined into the returned error.
func FetchPackages(ctx context.Context, client *http.Client, jobs []Job, destDir string, workers int) ([]string, error) {
	log := logger.Logger()

	if client == nil {
		client = network.NewSecureHTTPClient()
	}
	if workers < 1 {
		workers = 1
	}
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create dest dir %s: %w", destDir, err)
	}

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetWriter(ProgressOutput),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	paths := make([]string, len(jobs))
	errs := make([]error, len(jobs))
	indexes := make(chan int, len(jobs))
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				job := jobs[i]
				bar.Describe(path.Base(job.URL))
				if err := ctx.Err(); err != nil {
					errs[i] = err
				} else {
					paths[i], errs[i] = Fetch(ctx, client, job, destDir)
				}
				if errs[i] != nil {
					log.Errorf("downloading %s failed: %v", job.URL, errs[i])
				}
				if err := bar.Add(1); err != nil {
					log.Debugf("failed to add to progress bar: %v", err)
				}
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	if err := bar.Finish(); err != nil {
		log.Debugf("failed to finish progress bar: %v", err)
	}
	return paths, errors.Join(errs...)
}

// Fetch downloads a single job into destDir. An existing non-empty file
// whose digest matches the job is reused.
func Fetch(ctx context.Context, client *http.Client, job Job, destDir string) (string, error) {
	u, err := url.Parse(job.URL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", job.URL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" || strings.Contains(name, "..") {
		return "", fmt.Errorf("cannot derive a file name from %q", job.URL)
	}
	destPath := filepath.Join(destDir, name)

	if fi, err := os.Stat(destPath); err == nil && fi.Mode().IsRegular() && fi.Size() > 0 {
		if job.SHA256 == "" {
			return destPath, nil
		}
		if sum, err := fileSHA256(destPath); err == nil && strings.EqualFold(sum, job.SHA256) {
			return destPath, nil
		}
		logger.Logger().Warnf("re-downloading %s: checksum mismatch", name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return "", err
	}
	if client == nil {
		client = network.NewSecureHTTPClient()
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: job.URL, Code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(destDir, "."+name+".part-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("reading %s: %w", job.URL, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if job.SHA256 != "" {
		if got := hex.EncodeToString(h.Sum(nil)); !strings.EqualFold(got, job.SHA256) {
			return "", fmt.Errorf("checksum mismatch for %s: got %s, want %s", name, got, job.SHA256)
		}
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return "", err
	}
	return destPath, nil
}

func fileSHA256(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
