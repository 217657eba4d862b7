package wsfeed_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/livepitch/internal/adapters/source/memory"
	"github.com/okian/livepitch/internal/adapters/source/wsfeed"
	"github.com/okian/livepitch/internal/feed"
	. "github.com/smartystreets/goconvey/convey"
)

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

type captured struct {
	mu    sync.Mutex
	snaps []feed.Snapshot
	errs  []error
}

func (c *captured) OnSnapshot(s feed.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, s)
}

func (c *captured) OnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs = append(c.errs, err)
}

func (c *captured) lastLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snaps) == 0 {
		return -1
	}
	return len(c.snaps[len(c.snaps)-1].Documents)
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func (c *captured) hasError(target error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, err := range c.errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()

	Convey("Given a websocket feed server over a memory source", t, func() {
		src := memory.New()
		src.Put(feed.CollectionMatches, "m1", map[string]any{"status": "live", "homeTeam": "A", "awayTeam": "B"})
		ts := httptest.NewServer(wsfeed.NewServer(src))
		defer ts.Close()

		client := wsfeed.New("ws"+strings.TrimPrefix(ts.URL, "http"),
			wsfeed.WithReconnectDelay(20*time.Millisecond),
			wsfeed.WithKeepAlive(time.Second),
		)
		defer client.Close()

		c := &captured{}
		teardown, err := client.Subscribe(ctx, feed.LiveMatches("live"), c)
		So(err, ShouldBeNil)
		So(client.Start(ctx), ShouldBeNil)

		Convey("Then the initial snapshot arrives after connecting", func() {
			So(eventually(func() bool { return c.lastLen() == 1 }), ShouldBeTrue)
			So(client.Connected(), ShouldBeTrue)
		})

		Convey("When the source changes", func() {
			So(eventually(func() bool { return c.lastLen() == 1 }), ShouldBeTrue)
			src.Put(feed.CollectionMatches, "m2", map[string]any{"status": "live", "homeTeam": "C", "awayTeam": "D"})

			Convey("Then a complete snapshot follows", func() {
				So(eventually(func() bool { return c.lastLen() == 2 }), ShouldBeTrue)
			})
		})

		Convey("When the subscription is torn down", func() {
			So(eventually(func() bool { return c.lastLen() == 1 }), ShouldBeTrue)
			teardown()
			So(eventually(func() bool { return src.Subscribers() == 0 }), ShouldBeTrue)

			n := c.count()
			src.Put(feed.CollectionMatches, "m3", map[string]any{"status": "live"})
			time.Sleep(50 * time.Millisecond)

			Convey("Then no further snapshots are delivered", func() {
				So(c.count(), ShouldEqual, n)
			})
		})

		Convey("When the connection drops", func() {
			So(eventually(func() bool { return c.lastLen() == 1 }), ShouldBeTrue)
			n := c.count()
			ts.CloseClientConnections()

			Convey("Then the subscription sees a disconnect and is restored", func() {
				So(eventually(func() bool { return c.hasError(wsfeed.ErrDisconnected) }), ShouldBeTrue)
				So(eventually(func() bool { return c.count() > n }), ShouldBeTrue)
				So(c.lastLen(), ShouldEqual, 1)
			})
		})

		Convey("When the source reports an error", func() {
			So(eventually(func() bool { return c.lastLen() == 1 }), ShouldBeTrue)
			src.Fail(feed.CollectionMatches, errors.New("quota exceeded"))

			Convey("Then it arrives as a remote error", func() {
				So(eventually(func() bool { return c.hasError(wsfeed.ErrRemote) }), ShouldBeTrue)
			})
		})
	})

	Convey("Given a closed client", t, func() {
		client := wsfeed.New("ws://127.0.0.1:1")
		So(client.Close(), ShouldBeNil)
		So(client.Close(), ShouldBeNil)

		_, err := client.Subscribe(ctx, feed.LiveMatches("live"), &captured{})
		So(err, ShouldEqual, wsfeed.ErrClosed)
		So(client.Start(ctx), ShouldEqual, wsfeed.ErrClosed)
	})
}
