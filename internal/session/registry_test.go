package session_test

import (
	"fmt"
	"sync"
	"testing"

	"tandem/internal/buffer"
	"tandem/internal/session"
)

func TestOpenFileKeepsExistingBuffer(t *testing.T) {
	r := session.NewRegistry()
	r.OpenFile("/p/notes.txt", buffer.New("hello"))
	r.AddClient("/p/notes.txt", "a")

	if err := r.InsertIntoFile("/p/notes.txt", " world", 5); err != nil {
		t.Fatalf("InsertIntoFile: %v", err)
	}

	// A second open for the same path must not replace in-flight edits.
	r.OpenFile("/p/notes.txt", buffer.New("stale"))
	r.AddClient("/p/notes.txt", "b")

	got, ok := r.FileContents("/p/notes.txt")
	if !ok {
		t.Fatal("file not open")
	}
	if got != "hello world" {
		t.Errorf("FileContents = %q, want %q", got, "hello world")
	}
}

func TestTwoClientsShareOneEntry(t *testing.T) {
	r := session.NewRegistry()
	r.OpenFile("/p/f.txt", buffer.New("shared"))
	r.AddClient("/p/f.txt", "a")
	r.OpenFile("/p/f.txt", buffer.New("other"))
	r.AddClient("/p/f.txt", "b")

	if !r.FileHasClient("/p/f.txt", "a") || !r.FileHasClient("/p/f.txt", "b") {
		t.Fatal("both clients should be attached")
	}

	for _, id := range []string{"a", "b"} {
		got, ok := r.FileContents("/p/f.txt")
		if !ok || got != "shared" {
			t.Errorf("client %s sees %q, want %q", id, got, "shared")
		}
	}

	// Entry survives the first detach and dies with the second.
	r.RemoveClient("/p/f.txt", "a")
	if !r.IsOpen("/p/f.txt") {
		t.Fatal("entry removed while a client is still attached")
	}
	r.RemoveClient("/p/f.txt", "b")
	if r.IsOpen("/p/f.txt") {
		t.Fatal("entry retained after last client left")
	}
}

func TestRemoveClientOnUnknownFile(t *testing.T) {
	r := session.NewRegistry()
	// Must not panic or create an entry.
	r.RemoveClient("/nope", "a")
	if r.IsOpen("/nope") {
		t.Fatal("phantom entry created")
	}
}

func TestFilesForClient(t *testing.T) {
	r := session.NewRegistry()
	for _, path := range []string{"/p/a.txt", "/p/b.txt", "/p/c.txt"} {
		r.OpenFile(path, buffer.New(""))
	}
	r.AddClient("/p/a.txt", "x")
	r.AddClient("/p/c.txt", "x")
	r.AddClient("/p/b.txt", "y")

	files := r.FilesForClient("x")
	if len(files) != 2 {
		t.Fatalf("FilesForClient returned %v, want 2 paths", files)
	}
	seen := map[string]bool{}
	for _, f := range files {
		seen[f] = true
	}
	if !seen["/p/a.txt"] || !seen["/p/c.txt"] {
		t.Errorf("FilesForClient = %v", files)
	}
}

func TestSetCursorIsSilentNoOp(t *testing.T) {
	r := session.NewRegistry()
	// Neither the missing file nor the missing client may error or panic.
	r.SetCursor("/nope", "a", session.Cursor{Row: 1, Column: 2})

	r.OpenFile("/p/f.txt", buffer.New("x"))
	r.AddClient("/p/f.txt", "a")
	r.SetCursor("/p/f.txt", "ghost", session.Cursor{Row: 1, Column: 2})
	r.SetCursor("/p/f.txt", "a", session.Cursor{Row: 0, Column: 1})
}

func TestMutationsOnClosedFileAreNoOps(t *testing.T) {
	r := session.NewRegistry()
	if err := r.InsertIntoFile("/nope", "x", 0); err != nil {
		t.Errorf("InsertIntoFile on closed file: %v", err)
	}
	if err := r.DeleteFromFile("/nope", 0, 1); err != nil {
		t.Errorf("DeleteFromFile on closed file: %v", err)
	}
	if _, ok := r.FileContents("/nope"); ok {
		t.Error("FileContents reported a closed file as open")
	}
}

func TestSetFileContent(t *testing.T) {
	r := session.NewRegistry()
	r.OpenFile("/p/f.txt", buffer.New("old"))
	r.AddClient("/p/f.txt", "a")

	r.SetFileContent("/p/f.txt", "brand new")
	got, _ := r.FileContents("/p/f.txt")
	if got != "brand new" {
		t.Errorf("FileContents = %q, want %q", got, "brand new")
	}
}

func TestIdentityMap(t *testing.T) {
	r := session.NewRegistry()
	r.MapIDToUsername("c1", "alice")

	username, ok := r.Username("c1")
	if !ok || username != "alice" {
		t.Errorf("Username = %q, %v", username, ok)
	}

	r.RemoveIdentity("c1")
	if _, ok := r.Username("c1"); ok {
		t.Error("identity retained after removal")
	}
}

func TestOffsetAt(t *testing.T) {
	r := session.NewRegistry()
	r.OpenFile("/p/f.txt", buffer.New("ab\ncde\nf"))
	r.AddClient("/p/f.txt", "a")

	cases := []struct {
		cursor session.Cursor
		want   int
	}{
		{session.Cursor{Row: 0, Column: 0}, 0},
		{session.Cursor{Row: 0, Column: 2}, 2},
		{session.Cursor{Row: 1, Column: 0}, 3},
		{session.Cursor{Row: 1, Column: 3}, 6},
		{session.Cursor{Row: 2, Column: 1}, 8},
		// Past end of document clamps to length.
		{session.Cursor{Row: 9, Column: 9}, 8},
	}
	for _, tc := range cases {
		got, ok := r.OffsetAt("/p/f.txt", tc.cursor)
		if !ok {
			t.Fatalf("OffsetAt(%+v): file not open", tc.cursor)
		}
		if got != tc.want {
			t.Errorf("OffsetAt(%+v) = %d, want %d", tc.cursor, got, tc.want)
		}
	}

	if _, ok := r.OffsetAt("/nope", session.Cursor{}); ok {
		t.Error("OffsetAt reported a closed file as open")
	}
}

func TestSpanBetween(t *testing.T) {
	r := session.NewRegistry()
	r.OpenFile("/p/f.txt", buffer.New("ab\ncde\nf"))
	r.AddClient("/p/f.txt", "a")

	offset, length, ok := r.SpanBetween("/p/f.txt",
		session.Cursor{Row: 0, Column: 1},
		session.Cursor{Row: 1, Column: 2})
	if !ok {
		t.Fatal("file not open")
	}
	if offset != 1 || length != 4 {
		t.Errorf("SpanBetween = (%d, %d), want (1, 4)", offset, length)
	}

	// Inverted range collapses to zero length rather than going negative.
	_, length, _ = r.SpanBetween("/p/f.txt",
		session.Cursor{Row: 1, Column: 0},
		session.Cursor{Row: 0, Column: 0})
	if length != 0 {
		t.Errorf("inverted span length = %d, want 0", length)
	}
}

func TestConcurrentEditsToDifferentFiles(t *testing.T) {
	r := session.NewRegistry()
	const n = 8
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/p/f%d.txt", i)
		r.OpenFile(path, buffer.New(""))
		r.AddClient(path, "c")
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/p/f%d.txt", i)
			for j := 0; j < 100; j++ {
				if err := r.InsertIntoFile(path, "x", 0); err != nil {
					t.Errorf("InsertIntoFile(%s): %v", path, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/p/f%d.txt", i)
		got, _ := r.FileContents(path)
		if len(got) != 100 {
			t.Errorf("%s has %d bytes, want 100", path, len(got))
		}
	}
}

func TestConcurrentEditsToSameFileSerialize(t *testing.T) {
	r := session.NewRegistry()
	r.OpenFile("/p/f.txt", buffer.New(""))
	r.AddClient("/p/f.txt", "c")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := r.InsertIntoFile("/p/f.txt", "y", 0); err != nil {
					t.Errorf("InsertIntoFile: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, _ := r.FileContents("/p/f.txt")
	if len(got) != 200 {
		t.Errorf("file has %d bytes, want 200", len(got))
	}
}
