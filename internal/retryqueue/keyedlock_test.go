package retryqueue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLock_SerializesSameKey(t *testing.T) {
	k := newKeyedLock()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			k.With("case-A", func() {
				time.Sleep(time.Millisecond)
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	assert.Len(t, order, 5)
}

func TestKeyedLock_AllowsDifferentKeysConcurrently(t *testing.T) {
	k := newKeyedLock()
	var inFlight int32
	var maxObserved int32
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		key := string(rune('A' + i))
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			k.With(key, func() {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					cur := atomic.LoadInt32(&maxObserved)
					if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			})
		}(key)
	}
	wg.Wait()
	assert.True(t, maxObserved > 1, "expected different keys to run concurrently, max observed=%d", maxObserved)
}
