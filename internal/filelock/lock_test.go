package filelock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
)

func TestTryLockContention(t *testing.T) {
	dir := t.TempDir()
	a := New(dir)
	b := New(dir)

	if err := a.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	ok, err := b.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		t.Fatal("TryLock succeeded while the lock was held")
	}

	if err := a.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	ok, err = b.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock after release: ok=%v err=%v", ok, err)
	}
	if err := b.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}

func TestUnlockWithoutLockIsNoOp(t *testing.T) {
	if err := New(t.TempDir()).Unlock(); err != nil {
		t.Fatalf("Unlock on unheld lock: %v", err)
	}
}

func TestLockSerializesHolders(t *testing.T) {
	dir := t.TempDir()
	var inside, maxInside int32

	var wg conc.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Go(func() {
			l := New(dir)
			if err := l.Lock(); err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			if err := l.Unlock(); err != nil {
				t.Errorf("Unlock: %v", err)
			}
		})
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder at a time, saw %d", maxInside)
	}
}
