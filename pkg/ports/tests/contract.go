package tests

import (
	"errors"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// TreeLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.TreeLoader.
func TreeLoaderContractTest(t *testing.T, loader ports.TreeLoader, setupData map[string][]byte) {
	t.Helper()

	t.Run("GetTree_Success", func(t *testing.T) {
		for id, expectedContent := range setupData {
			content, err := loader.GetTree(id)
			if err != nil {
				t.Fatalf("unexpected error getting tree %s: %v", id, err)
			}
			if string(content) != string(expectedContent) {
				t.Errorf("content mismatch for %s. got %q, want %q", id, content, expectedContent)
			}
		}
	})

	t.Run("GetTree_NotFound", func(t *testing.T) {
		_, err := loader.GetTree("non-existent-tree")
		if !errors.Is(err, domain.ErrTreeNotFound) {
			t.Errorf("expected ErrTreeNotFound for non-existent tree, got %v", err)
		}
	})

	t.Run("ListTrees", func(t *testing.T) {
		trees, err := loader.ListTrees()
		if err != nil {
			t.Fatalf("unexpected error listing trees: %v", err)
		}

		if len(trees) != len(setupData) {
			t.Errorf("expected %d trees, got %d", len(setupData), len(trees))
		}

		lookup := make(map[string]bool)
		for _, id := range trees {
			lookup[id] = true
		}

		for id := range setupData {
			if !lookup[id] {
				t.Errorf("tree %s missing from list", id)
			}
		}
	})
}
