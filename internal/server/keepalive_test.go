package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-dev/agentdesk/pkg/adk/session"
)

func TestWithKeepAlive_InjectsWhenIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan session.Update)
	out := withKeepAlive(ctx, updates, 20*time.Millisecond)

	select {
	case item := <-out:
		assert.Nil(t, item.update)
	case <-time.After(2 * time.Second):
		t.Fatal("no keep-alive")
	}

	updates <- session.Update{RunID: "r1", Seq: 7}
	for {
		select {
		case item := <-out:
			if item.update == nil {
				continue
			}
			assert.Equal(t, uint64(7), item.update.Seq)
			close(updates)
			_, ok := <-out
			for ok {
				_, ok = <-out
			}
			return
		case <-time.After(2 * time.Second):
			t.Fatal("update not forwarded")
		}
	}
}

func TestWithKeepAlive_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	out := withKeepAlive(ctx, make(chan session.Update), time.Hour)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-out:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
}
