package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockDirectoryClient is a mock implementation of DirectoryClient
type MockDirectoryClient struct {
	mock.Mock
}

func (m *MockDirectoryClient) DescribeRepo(ctx context.Context, did string) (string, error) {
	args := m.Called(ctx, did)
	return args.String(0), args.Error(1)
}

func TestResolver_CacheShortCircuits(t *testing.T) {
	mockClient := new(MockDirectoryClient)
	cache := NewHandleCache()
	cache.Put("did:plc:abc", "alice.bsky.social")

	res := NewResolver(mockClient, cache, 10, zap.NewNop())

	handle, err := res.Resolve(context.Background(), "did:plc:abc")
	assert.NoError(t, err)
	assert.Equal(t, "alice.bsky.social", handle)

	mockClient.AssertNotCalled(t, "DescribeRepo", mock.Anything, mock.Anything)
}

func TestResolver_PopulatesCacheOnSuccess(t *testing.T) {
	mockClient := new(MockDirectoryClient)
	cache := NewHandleCache()

	mockClient.On("DescribeRepo", mock.Anything, "did:plc:abc").
		Return("alice.bsky.social", nil).Once()

	res := NewResolver(mockClient, cache, 10, zap.NewNop())

	handle, err := res.Resolve(context.Background(), "did:plc:abc")
	assert.NoError(t, err)
	assert.Equal(t, "alice.bsky.social", handle)

	// Second resolve must not issue another remote call.
	handle, err = res.Resolve(context.Background(), "did:plc:abc")
	assert.NoError(t, err)
	assert.Equal(t, "alice.bsky.social", handle)

	mockClient.AssertExpectations(t)
	mockClient.AssertNumberOfCalls(t, "DescribeRepo", 1)
}

func TestResolver_ConcurrentCallersShareOneLookup(t *testing.T) {
	mockClient := new(MockDirectoryClient)
	cache := NewHandleCache()

	mockClient.On("DescribeRepo", mock.Anything, "did:plc:abc").
		Run(func(args mock.Arguments) { time.Sleep(50 * time.Millisecond) }).
		Return("alice.bsky.social", nil).Once()

	res := NewResolver(mockClient, cache, 10, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle, err := res.Resolve(context.Background(), "did:plc:abc")
			assert.NoError(t, err)
			assert.Equal(t, "alice.bsky.social", handle)
		}()
	}
	wg.Wait()

	mockClient.AssertNumberOfCalls(t, "DescribeRepo", 1)
}

func TestResolver_FailureIsNotCached(t *testing.T) {
	mockClient := new(MockDirectoryClient)
	cache := NewHandleCache()

	mockClient.On("DescribeRepo", mock.Anything, "did:plc:abc").
		Return("", errors.New("directory unavailable")).Once()
	mockClient.On("DescribeRepo", mock.Anything, "did:plc:abc").
		Return("alice.bsky.social", nil).Once()

	res := NewResolver(mockClient, cache, 10, zap.NewNop())

	_, err := res.Resolve(context.Background(), "did:plc:abc")
	assert.Error(t, err)

	// A later call retries from scratch.
	handle, err := res.Resolve(context.Background(), "did:plc:abc")
	assert.NoError(t, err)
	assert.Equal(t, "alice.bsky.social", handle)

	mockClient.AssertExpectations(t)
}

// countingClient tracks the peak number of concurrent lookups.
type countingClient struct {
	current atomic.Int64
	peak    atomic.Int64
}

func (c *countingClient) DescribeRepo(ctx context.Context, did string) (string, error) {
	n := c.current.Add(1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	c.current.Add(-1)
	return "handle." + did, nil
}

func TestResolver_BoundsConcurrentLookups(t *testing.T) {
	client := &countingClient{}
	res := NewResolver(client, NewHandleCache(), 2, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		did := "did:plc:" + string(rune('a'+i))
		go func() {
			defer wg.Done()
			_, err := res.Resolve(context.Background(), did)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, client.peak.Load(), int64(2),
		"no more than the permit pool size may be outstanding at once")
}
