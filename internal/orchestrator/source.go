package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pdfdocx/internal/pdfdoc"
)

var errTooLarge = errors.New("file exceeds upload limit")

// fetchSource downloads a file_url. Supports s3://bucket/key and http(s)://.
func (o *Orchestrator) fetchSource(ctx context.Context, ref string) ([]byte, string, error) {
	// strip an optional #page fragment
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	switch {
	case strings.HasPrefix(ref, "s3://"):
		if o.deps.S3 == nil {
			return nil, "", errors.New("s3 sources are not configured")
		}
		return o.deps.S3.Fetch(ctx, ref, o.deps.MaxUploadBytes)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		return o.fetchHTTP(ctx, ref)
	default:
		return nil, "", fmt.Errorf("unsupported file_url scheme: %q", ref)
	}
}

func (o *Orchestrator) fetchHTTP(ctx context.Context, ref string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := o.deps.HTTP.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("http %d", resp.StatusCode)
	}
	if resp.ContentLength > o.deps.MaxUploadBytes {
		return nil, "", errTooLarge
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, o.deps.MaxUploadBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > o.deps.MaxUploadBytes {
		return nil, "", errTooLarge
	}
	return data, httpName(ref, resp.Header.Get("Content-Disposition")), nil
}

// httpName prefers the Content-Disposition filename over the URL path.
func httpName(ref, disposition string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if u, err := url.Parse(ref); err == nil {
		if b := path.Base(u.Path); b != "/" && b != "." {
			return b
		}
	}
	return ""
}

// countPages stages data in a temp file and reads the page count from the
// cross-reference data. The count only decorates the queued status.
func (o *Orchestrator) countPages(data []byte) int {
	f, err := os.CreateTemp(o.deps.TempDir, "pdfsrc-*.pdf")
	if err != nil {
		return 0
	}
	defer os.Remove(f.Name())
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0
	}
	n, err := pdfdoc.PageCount(f.Name())
	if err != nil {
		log.Debug().Err(err).Msg("page count unavailable")
		return 0
	}
	return n
}
