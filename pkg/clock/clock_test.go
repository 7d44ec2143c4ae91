package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeNowAndSince(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	assert.Equal(t, start, f.Now())

	f.Advance(5 * time.Second)
	assert.Equal(t, start.Add(5*time.Second), f.Now())
	assert.Equal(t, 5*time.Second, f.Since(start))
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ch := f.After(10 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before the deadline passed")
	default:
	}

	f.Advance(4 * time.Second)
	select {
	case <-ch:
		t.Fatal("After fired before the full duration elapsed")
	default:
	}

	f.Advance(6 * time.Second)
	select {
	case fired := <-ch:
		assert.Equal(t, start.Add(10*time.Second), fired)
	default:
		t.Fatal("After did not fire once the deadline passed")
	}
}

func TestFakeAfterZeroDurationFiresImmediately(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	ch := f.After(0)
	select {
	case fired := <-ch:
		assert.Equal(t, start, fired)
	default:
		t.Fatal("After(0) should fire without needing Advance")
	}
}

func TestRealClockMonotonic(t *testing.T) {
	r := Real{}
	start := r.Now()
	time.Sleep(time.Millisecond)
	assert.True(t, r.Since(start) > 0)
}
