package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLockerSerializesKey(t *testing.T) {
	locker := NewLocker()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "attempt:1:1")
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
	if locker.Len() != 0 {
		t.Fatalf("expected idle keys to be dropped, got %d", locker.Len())
	}
}

func TestLockerHonoursContext(t *testing.T) {
	locker := NewLocker()
	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "k"); err == nil {
		t.Fatalf("expected context error while key is held")
	}

	if _, err := locker.Lock(context.Background(), "other"); err != nil {
		t.Fatalf("independent key should lock: %v", err)
	}
}

func TestLockerUnlockIsIdempotent(t *testing.T) {
	locker := NewLocker()
	unlock, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	unlock()
	unlock()

	again, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}
