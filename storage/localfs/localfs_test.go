package localfs

import (
	"os"
	"testing"

	"github.com/borovkovgroup/proto/cidutil"
	"github.com/borovkovgroup/proto/storage"
	"github.com/borovkovgroup/proto/storage/testkit"
)

func TestLocalFS_Conformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		cas, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return cas
	})
}

func TestLocalFS_RejectMutationByOverwrite(t *testing.T) {
	cas, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	orig := []byte(`{"identity": "a", "signature": "b"}`)
	id, err := cas.Put(orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Tamper with the archived record out-of-band.
	path := cas.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"identity": "x"}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := cas.Get(id); err != storage.ErrCIDMismatch {
		t.Fatalf("Get after tamper: got %v want %v", err, storage.ErrCIDMismatch)
	}
	if _, err := cas.Put(orig); err != storage.ErrImmutable {
		t.Fatalf("Put after tamper: got %v want %v", err, storage.ErrImmutable)
	}

	wantID, err := cidutil.Sum(orig)
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if !id.Equals(wantID) {
		t.Fatalf("unexpected CID: got %s want %s", id, wantID)
	}
}

func TestLocalFS_ListSorted(t *testing.T) {
	dir := t.TempDir()
	cas, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for _, r := range []string{"one", "two", "three"} {
		if _, err := cas.Put([]byte(r)); err != nil {
			t.Fatalf("Put(%s): %v", r, err)
		}
	}
	if err := os.WriteFile(dir+"/README", []byte("not a record"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ids, err := cas.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1].String() >= ids[i].String() {
			t.Fatalf("List not sorted: %s >= %s", ids[i-1], ids[i])
		}
	}
}

func TestNew_RequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
