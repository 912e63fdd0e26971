package build

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/critdb/critdb/internal/store"
)

func TestEnrichVersionsLookupFailureIsNotFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "pkg3") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`["1.0.0","1.1.0"]`))
	}))
	defer server.Close()

	st, err := store.Create(filepath.Join(t.TempDir(), "critical.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	pkgs := seedPackages(t, st, 5)

	cfg := testConfig(server.URL)
	b := newTestBuilder(t, cfg)
	if err := b.enrichVersions(context.Background(), st, pkgs); err != nil {
		t.Fatalf("enrichVersions failed: %v", err)
	}

	for i := 1; i <= 5; i++ {
		numbers, err := st.VersionNumbers(store.PackageID(i))
		if err != nil {
			t.Fatalf("reading versions for package %d: %v", i, err)
		}
		if i == 3 {
			if len(numbers) != 0 {
				t.Errorf("package 3: got versions %v, want none (its lookup failed)", numbers)
			}
			continue
		}
		if len(numbers) != 2 {
			t.Errorf("package %d: got versions %v, want 2 entries", i, numbers)
		}
	}
}

func TestEnrichVersionsReportsProgressPerBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["2.0.0"]`))
	}))
	defer server.Close()

	st, err := store.Create(filepath.Join(t.TempDir(), "critical.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer st.Close()

	pkgs := seedPackages(t, st, 5)

	var messages []string
	b := newTestBuilder(t, testConfig(server.URL), WithProgress(func(msg string) {
		messages = append(messages, msg)
	}))
	if err := b.enrichVersions(context.Background(), st, pkgs); err != nil {
		t.Fatalf("enrichVersions failed: %v", err)
	}

	// Concurrency 2 over 5 packages means three batches: 2, 2, 1.
	want := []string{
		"fetched versions for 2/5 packages",
		"fetched versions for 4/5 packages",
		"fetched versions for 5/5 packages",
	}
	if len(messages) != len(want) {
		t.Fatalf("got progress %v, want %v", messages, want)
	}
	for i := range want {
		if messages[i] != want[i] {
			t.Errorf("progress[%d] = %q, want %q", i, messages[i], want[i])
		}
	}
}
