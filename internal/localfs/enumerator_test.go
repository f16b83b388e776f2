package localfs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// buildTree creates the given files (path → size) under a fresh temp root.
func buildTree(t *testing.T, files map[string]int) string {
	t.Helper()
	root, err := os.MkdirTemp("", "enum_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(root) })

	for rel, size := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, make([]byte, size), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func collect(t *testing.T, e *Enumerator) ([]FileEntry, error) {
	t.Helper()
	ch, errFn := e.Enumerate(context.Background())
	var entries []FileEntry
	for entry := range ch {
		entries = append(entries, entry)
	}
	return entries, errFn()
}

func TestEnumerateOrder(t *testing.T) {
	root := buildTree(t, map[string]int{
		"b.txt":      10,
		"a.txt":      20,
		"sub/c.txt":  30,
		"sub2/d.txt": 40,
	})

	entries, err := collect(t, NewEnumerator(root, Options{}))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"a.txt",
		"b.txt",
		filepath.Join("sub", "c.txt"),
		filepath.Join("sub2", "d.txt"),
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].RelPath != w {
			t.Errorf("entry %d = %q, want %q", i, entries[i].RelPath, w)
		}
	}
}

func TestEnumerateSizesAndTotals(t *testing.T) {
	root := buildTree(t, map[string]int{
		"one.dat":   100,
		"two.dat":   200,
		"three.dat": 300,
	})

	files, bytes, err := NewEnumerator(root, Options{}).Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if files != 3 {
		t.Errorf("files = %d, want 3", files)
	}
	if bytes != 600 {
		t.Errorf("bytes = %d, want 600", bytes)
	}
}

func TestEnumerateRestartable(t *testing.T) {
	root := buildTree(t, map[string]int{
		"x.txt":     5,
		"y/z.txt":   6,
		"y/zz.txt":  7,
		"deep/a/b":  8,
		"deep/a/bb": 9,
	})
	e := NewEnumerator(root, Options{})

	first, err := collect(t, e)
	if err != nil {
		t.Fatal(err)
	}
	second, err := collect(t, e)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].RelPath != second[i].RelPath || first[i].Size != second[i].Size {
			t.Errorf("run mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEnumerateSingleFileRoot(t *testing.T) {
	root := buildTree(t, map[string]int{"only.bin": 42})
	file := filepath.Join(root, "only.bin")

	entries, err := collect(t, NewEnumerator(file, Options{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].RelPath != "only.bin" || entries[0].Size != 42 {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestEnumerateMissingRoot(t *testing.T) {
	_, err := collect(t, NewEnumerator("/does/not/exist/anywhere", Options{}))
	if err == nil {
		t.Fatal("expected error for missing root")
	}
	if !IsEnumerationError(err) {
		t.Errorf("expected EnumerationError, got %T: %v", err, err)
	}
}

func TestEnumerateHiddenFiltering(t *testing.T) {
	root := buildTree(t, map[string]int{
		"visible.txt":        1,
		".hidden":            2,
		".hiddendir/sub.txt": 3,
	})

	t.Run("included by default", func(t *testing.T) {
		entries, err := collect(t, NewEnumerator(root, Options{}))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 3 {
			t.Errorf("got %d entries, want 3", len(entries))
		}
	})

	t.Run("excluded on request", func(t *testing.T) {
		entries, err := collect(t, NewEnumerator(root, Options{ExcludeHidden: true}))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].RelPath != "visible.txt" {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})
}

func TestEnumerateSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires privileges on windows")
	}

	t.Run("skipped by default", func(t *testing.T) {
		root := buildTree(t, map[string]int{"real.txt": 4})
		if err := os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "link.txt")); err != nil {
			t.Fatal(err)
		}

		entries, err := collect(t, NewEnumerator(root, Options{}))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].RelPath != "real.txt" {
			t.Errorf("unexpected entries: %+v", entries)
		}
	})

	t.Run("followed on request", func(t *testing.T) {
		root := buildTree(t, map[string]int{"dir/inner.txt": 4})
		if err := os.Symlink(filepath.Join(root, "dir"), filepath.Join(root, "alias")); err != nil {
			t.Fatal(err)
		}

		entries, err := collect(t, NewEnumerator(root, Options{FollowSymlinks: true}))
		if err != nil {
			t.Fatal(err)
		}
		// dir/inner.txt plus alias/inner.txt through the link
		if len(entries) != 2 {
			t.Errorf("got %d entries, want 2: %+v", len(entries), entries)
		}
	})

	t.Run("cycle rejected", func(t *testing.T) {
		root := buildTree(t, map[string]int{"sub/file.txt": 4})
		// sub/back points at the root: walking it would never terminate
		if err := os.Symlink(root, filepath.Join(root, "sub", "back")); err != nil {
			t.Fatal(err)
		}

		_, err := collect(t, NewEnumerator(root, Options{FollowSymlinks: true}))
		if err == nil {
			t.Fatal("expected cycle error")
		}
		if !IsEnumerationError(err) {
			t.Errorf("expected EnumerationError, got %T: %v", err, err)
		}
		if !errors.Is(err, ErrSymlinkCycle) {
			t.Errorf("expected ErrSymlinkCycle, got: %v", err)
		}
	})
}

func TestEnumerateCancellation(t *testing.T) {
	root := buildTree(t, map[string]int{
		"a.txt": 1, "b.txt": 1, "c.txt": 1, "d.txt": 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, errFn := NewEnumerator(root, Options{}).Enumerate(ctx)
	for range ch {
	}
	if err := errFn(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEnumerateUnreadableSubdirSkipped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not enforced the same way on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("running as root, permissions are not enforced")
	}

	root := buildTree(t, map[string]int{
		"ok.txt":          1,
		"locked/sub.txt":  2,
		"after/later.txt": 3,
	})
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(locked, 0o755)

	entries, err := collect(t, NewEnumerator(root, Options{}))
	if err != nil {
		t.Fatalf("walk should skip unreadable subdir, got error: %v", err)
	}
	for _, e := range entries {
		if e.RelPath == filepath.Join("locked", "sub.txt") {
			t.Error("unreadable subdir contents should not be enumerated")
		}
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2: %+v", len(entries), entries)
	}
}
