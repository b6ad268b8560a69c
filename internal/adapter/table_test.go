package adapter

import (
	"errors"
	"testing"
)

func TestTable(t *testing.T) {
	table := NewTable()

	for _, id := range []string{"search", "cache"} {
		id := id
		if err := table.Register(id, func() (Adapter, error) {
			return newFakeAdapter(id), nil
		}); err != nil {
			t.Fatalf("Register(%s): %v", id, err)
		}
	}

	if err := table.Register("cache", func() (Adapter, error) { return nil, nil }); !errors.Is(err, ErrDuplicateConstructor) {
		t.Errorf("duplicate Register error = %v", err)
	}
	if err := table.Register("x", nil); !errors.Is(err, ErrNilAdapter) {
		t.Errorf("nil constructor error = %v", err)
	}

	ids := table.IDs()
	if len(ids) != 2 || ids[0] != "search" || ids[1] != "cache" {
		t.Errorf("IDs() = %v, want [search cache]", ids)
	}

	a, err := table.Build("cache")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if a.Metadata().ID != "cache" {
		t.Errorf("built id = %s", a.Metadata().ID)
	}

	if _, err := table.Build("missing"); !errors.Is(err, ErrUnknownAdapter) {
		t.Errorf("Build(missing) error = %v, want ErrUnknownAdapter", err)
	}
}

func TestTable_BuildChecksID(t *testing.T) {
	table := NewTable()
	_ = table.Register("cache", func() (Adapter, error) {
		return newFakeAdapter("other"), nil
	})
	if _, err := table.Build("cache"); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("Build error = %v, want ErrInvalidMetadata", err)
	}

	_ = table.Register("broken", func() (Adapter, error) {
		return nil, errors.New("no disk")
	})
	if _, err := table.Build("broken"); err == nil {
		t.Error("expected constructor error")
	}
}
