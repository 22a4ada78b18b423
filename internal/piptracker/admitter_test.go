package piptracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdmitFirstSeenSucceeds(t *testing.T) {
	a := NewSequenceAdmitter()
	assert.True(t, a.Admit(1))
	assert.Equal(t, 1, a.Len())
}

func TestAdmitDuplicateIsRejected(t *testing.T) {
	a := NewSequenceAdmitter()
	require := assert.New(t)
	require.True(a.Admit(5))
	require.False(a.Admit(5), "retried sequence number must be rejected as a no-op")
}

func TestAdmitOrderIndependent(t *testing.T) {
	a := NewSequenceAdmitter()
	assert.True(t, a.Admit(3))
	assert.True(t, a.Admit(1))
	assert.True(t, a.Admit(2))
	assert.Equal(t, 3, a.Len())
}

func TestForgetAllowsReAdmission(t *testing.T) {
	a := NewSequenceAdmitter()
	a.Admit(9)
	a.Forget(9)
	assert.True(t, a.Admit(9))
}

func TestConcurrentAdmitExactlyOneWinnerPerSeq(t *testing.T) {
	a := NewSequenceAdmitter()
	var wg sync.WaitGroup
	wins := make([]bool, 32)
	for i := range wins {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			wins[i] = a.Admit(42)
		}(i)
	}
	wg.Wait()
	count := 0
	for _, w := range wins {
		if w {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
