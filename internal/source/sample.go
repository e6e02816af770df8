package source

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"normalizer/internal/dataset"
)

// Peek returns up to n bytes from url: an http(s) URL, a file:// URL or a
// bare path. n <= 0 reads everything. truncated reports whether more data
// followed.
func Peek(ctx context.Context, url string, n int, insecure bool) (sample []byte, truncated bool, err error) {
	var rc io.ReadCloser
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		rc, err = openHTTP(ctx, url, insecure)
	default:
		rc, err = os.Open(strings.TrimPrefix(url, "file://"))
	}
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()

	if n <= 0 {
		b, err := io.ReadAll(rc)
		return b, false, err
	}
	// One extra byte tells a full read from an exact fit.
	b, err := io.ReadAll(io.LimitReader(rc, int64(n)+1))
	if err != nil {
		return nil, false, err
	}
	if len(b) > n {
		return b[:n], true, nil
	}
	return b, false, nil
}

func openHTTP(ctx context.Context, url string, insecure bool) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 60 * time.Second}
	if insecure {
		client.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// Sniff guesses the format of a byte sample: "xlsx" for a zip container,
// "html" for markup, "json" for an object or array, else "csv".
func Sniff(sample []byte) string {
	if bytes.HasPrefix(sample, []byte("PK\x03\x04")) {
		return "xlsx"
	}
	trim := bytes.TrimSpace(bytes.TrimPrefix(sample, []byte("\xef\xbb\xbf")))
	switch {
	case len(trim) == 0:
		return "csv"
	case trim[0] == '<':
		return "html"
	case trim[0] == '{' || trim[0] == '[':
		return "json"
	}
	return "csv"
}

// ReadSample parses a sample taken by Peek. A truncated delimited sample is
// cut back to its last complete line; other formats must be complete.
func ReadSample(sample []byte, truncated bool, opt FileOptions) (*dataset.Dataset, error) {
	format := strings.ToLower(opt.Format)
	if format == "" {
		format = Sniff(sample)
	}
	if truncated && format != "csv" && format != "tsv" {
		return nil, fmt.Errorf("source: %s sample is truncated; read the whole input", format)
	}

	switch format {
	case "csv", "tsv":
		if truncated {
			if i := bytes.LastIndexByte(sample, '\n'); i >= 0 {
				sample = sample[:i+1]
			}
		}
		comma := opt.Comma
		if comma == 0 && format == "tsv" {
			comma = '\t'
		}
		return dataset.ReadCSV(bytes.NewReader(sample), dataset.CSVOptions{Comma: comma, NoHeader: opt.NoHeader, Text: opt.Text})
	case "json":
		return dataset.ReadJSON(bytes.NewReader(sample), dataset.JSONOptions{})
	case "xlsx", "excel":
		return dataset.ReadXLSX(bytes.NewReader(sample), dataset.XLSXOptions{Sheet: opt.Sheet, NoHeader: opt.NoHeader, Text: opt.Text})
	case "html":
		return dataset.ReadHTML(bytes.NewReader(sample), dataset.HTMLOptions{Selector: opt.Selector, Index: opt.Index, Text: opt.Text})
	}
	return nil, fmt.Errorf("source: unsupported format %q", format)
}
