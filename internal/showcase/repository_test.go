package showcase

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryRepository_lifecycle(t *testing.T) {
	repo := NewInMemoryRepository()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("create", func(t *testing.T) {
		if err := repo.Create(&Session{ID: "b", CreatedAt: base.Add(time.Second)}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if err := repo.Create(&Session{ID: "a", CreatedAt: base}); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if repo.ActiveCount() != 2 {
			t.Errorf("ActiveCount = %d, want 2", repo.ActiveCount())
		}
	})

	t.Run("duplicate_rejected", func(t *testing.T) {
		err := repo.Create(&Session{ID: "a"})
		if !errors.Is(err, ErrSessionExists) {
			t.Errorf("expected ErrSessionExists, got %v", err)
		}
	})

	t.Run("list_ordered_by_creation", func(t *testing.T) {
		got := repo.List()
		if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
			t.Errorf("List order: %v", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		s, ok := repo.Delete("a")
		if !ok || s.ID != "a" {
			t.Fatalf("Delete: ok=%v s=%v", ok, s)
		}
		if _, ok := repo.Get("a"); ok {
			t.Error("session still present after delete")
		}
		if _, ok := repo.Delete("a"); ok {
			t.Error("second delete should report missing")
		}
		if repo.ActiveCount() != 1 {
			t.Errorf("ActiveCount = %d, want 1", repo.ActiveCount())
		}
	})
}

func TestInMemoryRepository_concurrent(t *testing.T) {
	repo := NewInMemoryRepository()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := SessionID(fmt.Sprintf("s%d", i))
			_ = repo.Create(&Session{ID: id})
			repo.Get(id)
			repo.List()
			if i%2 == 0 {
				repo.Delete(id)
			}
		}(i)
	}
	wg.Wait()
	if repo.ActiveCount() != 25 {
		t.Errorf("ActiveCount = %d, want 25", repo.ActiveCount())
	}
}
