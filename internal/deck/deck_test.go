package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeDeck(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}
	return path
}

func TestLoadRefsLines(t *testing.T) {
	path := writeDeck(t, "deck.txt", "# gallery\na.jpg\n\n  b.jpg  \n")
	refs, err := LoadRefs(path)
	if err != nil {
		t.Fatalf("load refs: %v", err)
	}
	if diff := cmp.Diff([]string{"a.jpg", "b.jpg"}, refs); diff != "" {
		t.Fatalf("refs mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRefsManifest(t *testing.T) {
	path := writeDeck(t, "deck.yaml", "cards:\n  - image: one.png\n  - image: https://example.org/two.png\n")
	refs, err := LoadRefs(path)
	if err != nil {
		t.Fatalf("load refs: %v", err)
	}
	if diff := cmp.Diff([]string{"one.png", "https://example.org/two.png"}, refs); diff != "" {
		t.Fatalf("refs mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRefsYAMLList(t *testing.T) {
	path := writeDeck(t, "deck.yml", "- x.jpg\n- y.jpg\n")
	refs, err := LoadRefs(path)
	if err != nil {
		t.Fatalf("load refs: %v", err)
	}
	if diff := cmp.Diff([]string{"x.jpg", "y.jpg"}, refs); diff != "" {
		t.Fatalf("refs mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRefsEmpty(t *testing.T) {
	path := writeDeck(t, "deck.txt", "# nothing here\n\n")
	if _, err := LoadRefs(path); err == nil {
		t.Fatalf("expected empty deck error")
	}
}

func TestFilterForScheme(t *testing.T) {
	refs := []string{"a.jpg", "https://x/b.jpg", "HTTP://x/c.jpg", "s3://bucket/d.jpg"}
	if diff := cmp.Diff([]string{"https://x/b.jpg", "HTTP://x/c.jpg"}, Filter(refs, FilterForScheme("http"))); diff != "" {
		t.Fatalf("http filter mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a.jpg"}, Filter(refs, FilterForScheme("file"))); diff != "" {
		t.Fatalf("file filter mismatch:\n%s", diff)
	}
	if got := Filter(refs, FilterForScheme("any")); len(got) != len(refs) {
		t.Fatalf("expected any filter to keep everything, got %v", got)
	}
}

func TestDefaultRefsIsCopy(t *testing.T) {
	refs := DefaultRefs()
	refs[0] = "changed"
	if DefaultRefs()[0] == "changed" {
		t.Fatalf("expected DefaultRefs to return a copy")
	}
}
