package service

import (
	"sync"
	"testing"
)

func TestPlateLocksSerializeSamePlate(t *testing.T) {
	locks := newPlateLocks()

	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("01A123BC")
			current := counter
			counter = current + 1
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	if size := locks.size(); size != 0 {
		t.Fatalf("expected lock arena to be empty, got %d entries", size)
	}
}

func TestPlateLocksIndependentPlates(t *testing.T) {
	locks := newPlateLocks()

	unlockA := locks.lock("A")
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("B")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()

	if size := locks.size(); size != 0 {
		t.Fatalf("expected lock arena to be empty, got %d entries", size)
	}
}
