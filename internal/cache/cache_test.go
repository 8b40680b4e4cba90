package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSumIsDeterministicAndVersionSensitive(t *testing.T) {
	ast := []byte(`{"kind":"Module"}`)
	a := Sum(ast, "v1")
	b := Sum(ast, "v1")
	if a != b {
		t.Error("Sum over identical inputs should be stable")
	}
	c := Sum(ast, "v2")
	if a == c {
		t.Error("Sum should change when the version tag changes")
	}
}

func TestSumIsContentSensitive(t *testing.T) {
	a := Sum([]byte(`{"kind":"Module","body":[]}`), "v1")
	b := Sum([]byte(`{"kind":"Module","body":[1]}`), "v1")
	if a == b {
		t.Error("Sum should change when the AST bytes change")
	}
}

func TestDirPutGetRoundTrip(t *testing.T) {
	d := Dir{Root: t.TempDir()}
	id := Sum([]byte("x"), "v1")
	if _, ok := d.Get(id); ok {
		t.Fatal("expected a miss on an empty cache")
	}
	if err := d.Put(id, "(module)"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	text, ok := d.Get(id)
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if text != "(module)" {
		t.Errorf("Get = %q, want %q", text, "(module)")
	}
}

func TestDirPutCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "cache")
	d := Dir{Root: root}
	id := Sum([]byte("y"), "v1")
	if err := d.Put(id, "(module)"); err != nil {
		t.Fatalf("Put into a missing root tree: %v", err)
	}
	if _, ok := d.Get(id); !ok {
		t.Fatal("expected a hit after Put created the missing root")
	}
}

func TestLockDirSequentialAcquireRelease(t *testing.T) {
	root := t.TempDir()
	l1, err := LockDir(root)
	if err != nil {
		t.Fatalf("first LockDir: %v", err)
	}
	if err := l1.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	l2, err := LockDir(root)
	if err != nil {
		t.Fatalf("second LockDir after release: %v", err)
	}
	if err := l2.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestLockDirBlocksConcurrentHolder(t *testing.T) {
	root := t.TempDir()
	l1, err := LockDir(root)
	if err != nil {
		t.Fatalf("LockDir: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		l2, err := LockDir(root)
		if err != nil {
			return
		}
		close(acquired)
		l2.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second LockDir should have blocked while the first lock is held")
	case <-time.After(50 * time.Millisecond):
	}

	if err := l1.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	<-acquired
}
