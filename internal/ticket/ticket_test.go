package ticket

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTicket_Validate(t *testing.T) {
	if err := (Ticket{Key: "OPS-1"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (Ticket{Key: "  "}).Validate(); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Validate() error = %v, want ErrInvalidTicket", err)
	}
}

func TestTicket_HasLabel(t *testing.T) {
	tk := Ticket{Key: "OPS-1", Labels: []string{"Backend", "urgent"}}
	if !tk.HasLabel("backend") {
		t.Error("expected HasLabel(backend) to be true")
	}
	if tk.HasLabel("frontend") {
		t.Error("expected HasLabel(frontend) to be false")
	}
}

func TestTicket_CloneIsDeep(t *testing.T) {
	orig := Ticket{Key: "OPS-1", Labels: []string{"a"}}
	c := orig.Clone()
	c.Labels[0] = "b"
	if orig.Labels[0] != "a" {
		t.Error("Clone shares label storage with original")
	}
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource("mem", Ticket{Key: "B-2"}, Ticket{Key: "A-1"})

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 2 || got[0].Key != "A-1" || got[1].Key != "B-2" {
		t.Fatalf("Fetch() = %+v, want sorted A-1, B-2", got)
	}

	if err := src.Put(Ticket{}); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Put(empty) error = %v, want ErrInvalidTicket", err)
	}
	if err := src.Put(Ticket{Key: "C-3", Title: "new"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !src.Delete("A-1") {
		t.Error("Delete(A-1) = false, want true")
	}
	if src.Delete("A-1") {
		t.Error("second Delete(A-1) = true, want false")
	}

	got, _ = src.Fetch(context.Background())
	if len(got) != 2 || got[1].Key != "C-3" {
		t.Errorf("Fetch() after edits = %+v", got)
	}
}

func TestMemorySource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemorySource("mem").Fetch(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickets.yaml")
	content := `tickets:
  - key: OPS-1
    title: Rotate credentials
    status: open
    labels: [security]
  - key: OPS-2
    title: Upgrade cluster
    status: done
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path)
	if src.Name() != path {
		t.Errorf("Name() = %q, want %q", src.Name(), path)
	}

	got, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Fetch() returned %d tickets, want 2", len(got))
	}
	if got[0].Title != "Rotate credentials" || !got[0].HasLabel("security") {
		t.Errorf("unexpected first ticket %+v", got[0])
	}
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewFileSource(filepath.Join(dir, "missing.yaml")).Fetch(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("tickets:\n  - title: no key\n"), 0644)
	if _, err := NewFileSource(bad).Fetch(context.Background()); !errors.Is(err, ErrInvalidTicket) {
		t.Errorf("Fetch() error = %v, want ErrInvalidTicket", err)
	}
}
