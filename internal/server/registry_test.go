package server

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindThenLookup(t *testing.T) {
	r := NewRegistry()
	c := &Client{}

	displaced := r.Bind(c, "alice1")
	assert.Nil(t, displaced)

	got, ok := r.Lookup("alice1")
	require.True(t, ok)
	assert.Same(t, c, got)
	assert.Equal(t, "alice1", r.Username(c))
}

func TestLookupUnknownUsername(t *testing.T) {
	r := NewRegistry()

	_, ok := r.Lookup("nobody")
	assert.False(t, ok)
}

func TestUnbindRemovesBinding(t *testing.T) {
	r := NewRegistry()
	c := &Client{}

	r.Bind(c, "alice1")
	r.Unbind(c)

	_, ok := r.Lookup("alice1")
	assert.False(t, ok)
	assert.Empty(t, r.Username(c))
}

func TestUnbindUnauthenticatedConnectionIsNoOp(t *testing.T) {
	r := NewRegistry()

	r.Unbind(&Client{})
	r.Unbind(&Client{})
}

func TestBindReplacesPreviousConnection(t *testing.T) {
	r := NewRegistry()
	first := &Client{}
	second := &Client{}

	require.Nil(t, r.Bind(first, "alice1"))

	displaced := r.Bind(second, "alice1")
	assert.Same(t, first, displaced)

	// Last connection wins.
	got, ok := r.Lookup("alice1")
	require.True(t, ok)
	assert.Same(t, second, got)

	// The displaced connection is orphaned, not bound.
	assert.Empty(t, r.Username(first))
}

func TestDisplacedConnectionUnbindKeepsNewBinding(t *testing.T) {
	r := NewRegistry()
	first := &Client{}
	second := &Client{}

	r.Bind(first, "alice1")
	r.Bind(second, "alice1")

	// The orphaned connection disconnecting must not evict the new one.
	r.Unbind(first)

	got, ok := r.Lookup("alice1")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRebindUnderDifferentUsername(t *testing.T) {
	r := NewRegistry()
	c := &Client{}

	r.Bind(c, "alice1")
	r.Bind(c, "bob123")

	_, ok := r.Lookup("alice1")
	assert.False(t, ok)

	got, ok := r.Lookup("bob123")
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestOnlineUsernamesSnapshot(t *testing.T) {
	r := NewRegistry()

	assert.Empty(t, r.OnlineUsernames())

	r.Bind(&Client{}, "alice1")
	r.Bind(&Client{}, "bob123")
	orphan := &Client{}
	r.Bind(orphan, "carol1")
	r.Unbind(orphan)

	usernames := r.OnlineUsernames()
	sort.Strings(usernames)
	assert.Equal(t, []string{"alice1", "bob123"}, usernames)
}

func TestConcurrentBindUnbindLookup(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	usernames := []string{"alice1", "bob123", "carol1", "dave12"}

	for _, username := range usernames {
		wg.Add(1)
		go func(username string) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c := &Client{}
				r.Bind(c, username)
				if got, ok := r.Lookup(username); ok {
					// A lookup may race a replacement bind, but it must
					// never observe a torn write.
					assert.NotNil(t, got)
				}
				r.Unbind(c)
			}
		}(username)
	}

	wg.Wait()
}
