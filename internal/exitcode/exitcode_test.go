package exitcode

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstWriteWins(t *testing.T) {
	var f First
	assert.True(t, f.Set(Kicked))
	assert.False(t, f.Set(Comms))
	assert.Equal(t, Kicked, f.Get())
}

func TestFirstDefaultsToNormal(t *testing.T) {
	var f First
	assert.Equal(t, Normal, f.Get())
}

func TestFirstConcurrentSettersOnlyOneWins(t *testing.T) {
	var f First
	var wg sync.WaitGroup
	wins := make(chan bool, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		wins <- f.Set(Comms)
	}()
	go func() {
		defer wg.Done()
		wins <- f.Set(FailedAuth)
	}()
	wg.Wait()
	close(wins)

	trueCount := 0
	for w := range wins {
		if w {
			trueCount++
		}
	}
	assert.Equal(t, 1, trueCount)
	assert.Contains(t, []Code{Comms, FailedAuth}, f.Get())
}
