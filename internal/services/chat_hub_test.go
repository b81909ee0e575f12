package services

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// fakeChatConn records writes and flags any two writes that overlap in time.
type fakeChatConn struct {
	mu      sync.Mutex
	writes  []interface{}
	failing bool
	closed  bool

	inWrite atomic.Bool
	overlap atomic.Bool
}

func (c *fakeChatConn) WriteJSON(v interface{}) error {
	if c.inWrite.Swap(true) {
		c.overlap.Store(true)
	}
	time.Sleep(time.Millisecond)
	c.inWrite.Store(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("connection reset")
	}
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeChatConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChatConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func TestChatHub_BroadcastReachesRoomOnly(t *testing.T) {
	hub := NewChatHub(zerolog.Nop())
	orderA, orderB := uuid.New(), uuid.New()

	inRoom := &fakeChatConn{}
	elsewhere := &fakeChatConn{}
	hub.Register(orderA, inRoom)
	hub.Register(orderB, elsewhere)

	hub.Broadcast(orderA, "hello")

	assert.Equal(t, 1, inRoom.writeCount())
	assert.Equal(t, 0, elsewhere.writeCount())
}

func TestChatHub_DropsFailedConnection(t *testing.T) {
	hub := NewChatHub(zerolog.Nop())
	orderID := uuid.New()

	dead := &fakeChatConn{failing: true}
	alive := &fakeChatConn{}
	hub.Register(orderID, dead)
	hub.Register(orderID, alive)

	hub.Broadcast(orderID, "first")
	hub.Broadcast(orderID, "second")

	assert.True(t, dead.closed)
	assert.Equal(t, 0, dead.writeCount())
	assert.Equal(t, 2, alive.writeCount())
}

func TestChatHub_ConcurrentBroadcastsSerializeWrites(t *testing.T) {
	hub := NewChatHub(zerolog.Nop())
	orderID := uuid.New()

	conn := &fakeChatConn{}
	hub.Register(orderID, conn)

	const senders = 8
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			hub.Broadcast(orderID, n)
		}(i)
	}
	wg.Wait()

	assert.False(t, conn.overlap.Load(), "writes to one connection must never overlap")
	assert.Equal(t, senders, conn.writeCount())
}
