package presence

import (
	"errors"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	mocks "github.com/aliskhannn/realtime-notifier/internal/mocks/presence"
)

func TestRegistry_Register_DisplacesPrevious(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := NewRegistry(nil)
	userID := uuid.New()

	first := mocks.NewMockConn(ctrl)
	second := mocks.NewMockConn(ctrl)

	first.EXPECT().Close(CloseReplaced, gomock.Any()).Return(nil)
	second.EXPECT().IsOpen().Return(true)

	r.Register(userID, first)
	r.Register(userID, second)

	assert.True(t, r.IsOnline(userID))
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_UnregisterIf_ComparesIdentity(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := NewRegistry(nil)
	userID := uuid.New()

	stale := mocks.NewMockConn(ctrl)
	current := mocks.NewMockConn(ctrl)
	stale.EXPECT().Close(CloseReplaced, gomock.Any()).Return(nil)

	r.Register(userID, stale)
	r.Register(userID, current)

	assert.False(t, r.UnregisterIf(userID, stale))
	assert.Equal(t, 1, r.Count())

	assert.True(t, r.UnregisterIf(userID, current))
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_IsOnline_HalfClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := NewRegistry(nil)
	userID := uuid.New()

	conn := mocks.NewMockConn(ctrl)
	conn.EXPECT().IsOpen().Return(false).Times(2)

	r.Register(userID, conn)

	assert.False(t, r.IsOnline(userID))
	assert.False(t, r.Push(userID, "hello"))
	assert.False(t, r.IsOnline(uuid.New()))
}

func TestRegistry_Push(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := NewRegistry(nil)
	userID := uuid.New()

	conn := mocks.NewMockConn(ctrl)
	conn.EXPECT().IsOpen().Return(true).AnyTimes()

	gomock.InOrder(
		conn.EXPECT().Send("first").Return(nil),
		conn.EXPECT().Send("second").Return(errors.New("broken pipe")),
		conn.EXPECT().Send("third").Do(func(any) { panic("boom") }),
	)

	r.Register(userID, conn)

	assert.True(t, r.Push(userID, "first"))
	assert.False(t, r.Push(userID, "second"))
	assert.False(t, r.Push(userID, "third"))
	assert.False(t, r.Push(uuid.New(), "nobody"))
}

func TestRegistry_Unregister_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var counts []int
	r := NewRegistry(func(online int) { counts = append(counts, online) })
	userID := uuid.New()

	r.Register(userID, mocks.NewMockConn(ctrl))
	r.Unregister(userID)
	r.Unregister(userID)

	assert.Equal(t, []int{1, 0}, counts)
	assert.Empty(t, r.ListOnline())
}

func TestRegistry_Shutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := NewRegistry(nil)

	a := mocks.NewMockConn(ctrl)
	b := mocks.NewMockConn(ctrl)
	late := mocks.NewMockConn(ctrl)

	a.EXPECT().Close(CloseGoingAway, gomock.Any()).Return(nil)
	b.EXPECT().Close(CloseGoingAway, gomock.Any()).Return(errors.New("already closed"))
	late.EXPECT().Close(CloseGoingAway, gomock.Any()).Return(nil)

	r.Register(uuid.New(), a)
	r.Register(uuid.New(), b)
	assert.Len(t, r.ListOnline(), 2)

	r.Shutdown()
	assert.Equal(t, 0, r.Count())

	r.Register(uuid.New(), late)
	assert.Equal(t, 0, r.Count())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	r := NewRegistry(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			userID := uuid.New()
			conn := mocks.NewMockConn(ctrl)
			conn.EXPECT().IsOpen().Return(true).AnyTimes()
			conn.EXPECT().Send(gomock.Any()).Return(nil).AnyTimes()

			r.Register(userID, conn)
			r.Push(userID, "ping")
			r.IsOnline(userID)
			r.UnregisterIf(userID, conn)
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

func TestRegistry_OnlineCountFollowsMutations(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var (
		last  int
		calls int
	)
	r := NewRegistry(func(online int) {
		last = online
		calls++
	})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			userID := uuid.New()
			conn := mocks.NewMockConn(ctrl)

			r.Register(userID, conn)
			if i%2 == 0 {
				r.UnregisterIf(userID, conn)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 32, r.Count())
	assert.Equal(t, r.Count(), last, "the last published count is the current one")
	assert.Equal(t, 96, calls)
}
