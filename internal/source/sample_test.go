package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestPeek_FileAndHTTP(t *testing.T) {
	t.Parallel()
	body := "id,city\n1,Oslo\n2,Rome\n3,Lima\n"

	p := filepath.Join(t.TempDir(), "cities.csv")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cities.csv" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)

	for _, url := range []string{p, "file://" + p, srv.URL + "/cities.csv"} {
		b, truncated, err := Peek(context.Background(), url, 20, false)
		if err != nil {
			t.Fatalf("Peek(%s): %v", url, err)
		}
		if string(b) != body[:20] || !truncated {
			t.Fatalf("Peek(%s) = %q truncated=%v", url, b, truncated)
		}
		all, truncated, err := Peek(context.Background(), url, len(body), false)
		if err != nil || string(all) != body || truncated {
			t.Fatalf("exact Peek(%s) = %q truncated=%v err=%v", url, all, truncated, err)
		}
	}

	if _, _, err := Peek(context.Background(), srv.URL+"/missing", 10, false); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestSniff(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"\xef\xbb\xbf[{\"a\": 1}]": "json",
		"  {\"rows\": []}":        "json",
		"<table></table>":         "html",
		"PK\x03\x04rest":          "xlsx",
		"a,b\n1,2\n":              "csv",
		"":                        "csv",
	}
	for in, want := range tests {
		if got := Sniff([]byte(in)); got != want {
			t.Fatalf("Sniff(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadSample_TruncatedCSV(t *testing.T) {
	t.Parallel()
	d, err := ReadSample([]byte("id,city\n1,Oslo\n2,Ro"), true, FileOptions{})
	if err != nil {
		t.Fatalf("ReadSample: %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("rows = %v, want only the complete line", d.Rows)
	}
	if _, err := ReadSample([]byte(`[{"a": 1}, {"a"`), true, FileOptions{}); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
}
