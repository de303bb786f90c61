package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const sampleLandscape = `landscape:
  - name: Orchestration & Management
    subcategories:
      - name: Service Mesh
        items:
          - name: Istio
            project: graduated
            repo_url: https://github.com/istio/istio
          - name: Linkerd
            project: graduated
            repo_url: https://github.com/linkerd/linkerd2
          - name: Aspen Mesh
            repo_url: https://github.com/aspenmesh/x
          - name: Archived Thing
            project: archived
            repo_url: https://example.com/a
          - name: Airship
  - name: Provisioning
    subcategories:
      - name: Automation
        items:
          - name: Argo
            project: graduated
            repo_url: https://github.com/argoproj/argo-cd
          - name: Istio
            repo_url: https://github.com/istio/istio
          - name: kubectl-thing
            repo_url: https://example.com/k
`

func TestGroupDirRoundTrip(t *testing.T) {
	cases := map[string]string{"A": "00-A", "J": "09-J", "Z": "25-Z", "backlog": "backlog", "a": "a"}
	for group, dir := range cases {
		if got := GroupDir(group); got != dir {
			t.Fatalf("GroupDir(%q) = %q, want %q", group, got, dir)
		}
		if got := GroupFromDir(dir); got != group {
			t.Fatalf("GroupFromDir(%q) = %q, want %q", dir, got, group)
		}
	}
	if got := GroupFromDir("03-A"); got != "03-A" {
		t.Fatalf("mismatched week prefix should be kept verbatim, got %q", got)
	}
	if len(Letters()) != 26 {
		t.Fatalf("expected 26 letters")
	}
}

func TestBuildIndexFiltersAndSorts(t *testing.T) {
	doc, err := ParseLandscape([]byte(sampleLandscape))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	idx := BuildIndex(doc)
	if got := idx.Items("A"); !reflect.DeepEqual(got, []string{"Argo", "Aspen Mesh"}) {
		t.Fatalf("unexpected A items: %v", got)
	}
	if got := idx.Items("I"); !reflect.DeepEqual(got, []string{"Istio"}) {
		t.Fatalf("duplicate names should collapse, got %v", got)
	}
	if got := idx.Groups(); !reflect.DeepEqual(got, []string{"A", "I", "L"}) {
		t.Fatalf("unexpected groups: %v", got)
	}
}

func TestItemListReadWrite(t *testing.T) {
	dir := t.TempDir()
	if err := WriteItemList(dir, "B", []string{"Buildpacks", "Backstage"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadItemList(filepath.Join(dir, "01-B", ItemListFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Backstage", "Buildpacks"}) {
		t.Fatalf("unexpected names: %v", got)
	}

	mixed := filepath.Join(dir, "mixed.yaml")
	if err := os.WriteFile(mixed, []byte("- Plain\n- name: Mapped\n- 7\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err = ReadItemList(mixed)
	if err != nil {
		t.Fatalf("read mixed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"Plain", "Mapped"}) {
		t.Fatalf("unexpected mixed names: %v", got)
	}

	if _, err := ReadItemList(filepath.Join(dir, "missing.yaml")); !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
}

func TestFeedReadsItemListsWithoutLandscape(t *testing.T) {
	dir := t.TempDir()
	if err := WriteItemList(dir, "C", []string{"Cilium"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "02-C-notes"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	feed := NewFeed(dir)
	groups, err := feed.Groups()
	if err != nil {
		t.Fatalf("groups: %v", err)
	}
	if !reflect.DeepEqual(groups, []string{"C"}) {
		t.Fatalf("unexpected groups: %v", groups)
	}
	items, err := feed.Items("C")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if !reflect.DeepEqual(items, []string{"Cilium"}) {
		t.Fatalf("unexpected items: %v", items)
	}
	if _, err := feed.Items("D"); !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
}

func TestFeedCachesIndexUntilFileChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "landscape.yml")
	if err := os.WriteFile(path, []byte(sampleLandscape), 0o644); err != nil {
		t.Fatalf("write landscape: %v", err)
	}
	cache := NewIndexCache(2)
	feed := NewFeed(dir, WithLandscape(path), WithCache(cache))

	if _, err := feed.Items("A"); err != nil {
		t.Fatalf("items: %v", err)
	}
	if _, err := feed.Items("I"); err != nil {
		t.Fatalf("items: %v", err)
	}
	if hits, misses := cache.Stats(); hits != 1 || misses != 1 {
		t.Fatalf("expected 1 hit / 1 miss, got %d / %d", hits, misses)
	}

	updated := sampleLandscape + "          - name: Zarf\n            repo_url: https://github.com/defenseunicorns/zarf\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite landscape: %v", err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	items, err := feed.Items("Z")
	if err != nil {
		t.Fatalf("items after change: %v", err)
	}
	if !reflect.DeepEqual(items, []string{"Zarf"}) {
		t.Fatalf("stale index served: %v", items)
	}

	groups, err := feed.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(groups) != 4 {
		t.Fatalf("unexpected exported groups: %v", groups)
	}
	if _, err := os.Stat(filepath.Join(dir, "25-Z", ItemListFile)); err != nil {
		t.Fatalf("expected exported list for Z: %v", err)
	}
}

func TestIndexCacheClearsOnOverflow(t *testing.T) {
	cache := NewIndexCache(2)
	cache.Put(CacheKey{Path: "a"}, Index{})
	cache.Put(CacheKey{Path: "b"}, Index{})
	cache.Put(CacheKey{Path: "b"}, Index{"B": {"x"}})
	if cache.Len() != 2 {
		t.Fatalf("overwriting an existing key must not evict, len=%d", cache.Len())
	}
	cache.Put(CacheKey{Path: "c"}, Index{})
	if cache.Len() != 1 {
		t.Fatalf("expected cache cleared before insert, len=%d", cache.Len())
	}
	if _, ok := cache.Get(CacheKey{Path: "a"}); ok {
		t.Fatalf("a should have been evicted")
	}
	if _, ok := cache.Get(CacheKey{Path: "c"}); !ok {
		t.Fatalf("c should be cached")
	}
}
