package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerPool(t *testing.T) {
	assert := assert.New(t)

	t.Run("Get and Put", func(t *testing.T) {
		timer1 := GetTimer(time.Second)
		assert.NotNil(timer1)
		PutTimer(timer1)

		timer2 := GetTimer(10 * time.Millisecond)
		assert.NotNil(timer2)
		<-timer2.C
		PutTimer(timer2)
	})

	t.Run("Reused timer does not fire early", func(t *testing.T) {
		timer1 := GetTimer(20 * time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		PutTimer(timer1)

		begin := time.Now()
		timer2 := GetTimer(100 * time.Millisecond)
		select {
		case fired := <-timer2.C:
			assert.GreaterOrEqual(fired.Sub(begin), 90*time.Millisecond)
		case <-time.After(time.Second):
			t.Error("timer2 should have fired")
		}
		PutTimer(timer2)
	})

	t.Run("Unread expiry is discarded", func(t *testing.T) {
		timer1 := GetTimer(time.Millisecond)
		time.Sleep(10 * time.Millisecond)
		PutTimer(timer1)

		timer2 := GetTimer(50 * time.Millisecond)
		select {
		case <-timer2.C:
			t.Error("pooled timer delivered a stale expiry")
		case <-time.After(20 * time.Millisecond):
		}
		PutTimer(timer2)
	})

	t.Run("Concurrency", func(t *testing.T) {
		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				timer := GetTimer(5 * time.Millisecond)
				defer PutTimer(timer)
				<-timer.C
			}()
		}
		wg.Wait()
	})
}

func TestWaitTimeout(t *testing.T) {
	done := make(chan struct{})
	assert.False(t, WaitTimeout(done, 10*time.Millisecond))

	go func() {
		time.Sleep(5 * time.Millisecond)
		close(done)
	}()
	assert.True(t, WaitTimeout(done, time.Second))
	assert.True(t, WaitTimeout(done, 0))
}
