package worker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureBufferConcurrentWrites(t *testing.T) {
	c := &captureBuffer{}
	var wg sync.WaitGroup
	const writers = 20
	const perWriter = 50

	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				n, err := c.Write([]byte("x"))
				assert.NoError(t, err)
				assert.Equal(t, 1, n)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, c.String(), writers*perWriter)
}

func TestCaptureBufferString(t *testing.T) {
	c := &captureBuffer{}
	_, _ = c.Write([]byte("hello "))
	_, _ = c.Write([]byte("world"))
	assert.Equal(t, "hello world", c.String())
}
