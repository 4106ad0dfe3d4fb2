package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestFakeClock_AdvanceFiresDueWaiters(t *testing.T) {
	c := Fake(epoch)
	short := c.After(time.Second)
	long := c.After(time.Minute)

	c.Advance(2 * time.Second)

	select {
	case fired := <-short:
		assert.Equal(t, epoch.Add(2*time.Second), fired)
	default:
		t.Fatal("expected short waiter to fire")
	}
	select {
	case <-long:
		t.Fatal("long waiter fired early")
	default:
	}
	assert.Equal(t, 1, c.Pending())
}

func TestFakeClock_BlockUntil(t *testing.T) {
	c := Fake(epoch)
	done := make(chan struct{})
	go func() {
		<-c.After(5 * time.Second)
		close(done)
	}()

	c.BlockUntil(1)
	c.Advance(5 * time.Second)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never fired")
	}
}

func TestFakeClock_AutoAdvance(t *testing.T) {
	c := Fake(epoch, AutoAdvance())

	<-c.After(3 * time.Second)
	<-c.After(2 * time.Second)

	require.Equal(t, epoch.Add(5*time.Second), c.Now())
	assert.Equal(t, 5*time.Second, c.Since(epoch))
	assert.Zero(t, c.Pending())
}
