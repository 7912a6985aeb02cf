package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vancomm/minefield/internal/auth"
	"github.com/vancomm/minefield/internal/command"
	"github.com/vancomm/minefield/internal/config"
	"github.com/vancomm/minefield/internal/mines"
	"github.com/vancomm/minefield/internal/store"
)

func TestSessionLocksIndependent(t *testing.T) {
	var locks sessionLocks
	a, b := uuid.New(), uuid.New()

	unlockA := locks.lock(a)
	done := make(chan struct{})
	go func() {
		unlockB := locks.lock(b)
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session b waited on session a")
	}

	acquired := make(chan struct{})
	go func() {
		unlock := locks.lock(a)
		close(acquired)
		unlock()
	}()
	select {
	case <-acquired:
		t.Fatal("session a locked twice")
	case <-time.After(50 * time.Millisecond):
	}
	unlockA()
	<-acquired

	assert.Eventually(t, func() bool { return locks.len() == 0 },
		time.Second, time.Millisecond)
}

func TestApplyConcurrentSessions(t *testing.T) {
	cfg := config.Default()
	st := store.NewMemory()
	cookies := auth.NewCookies(
		cfg.Cookies, auth.NewJWT(testKey, &testKey.PublicKey, time.Hour), false,
	)
	s := New(cfg, st, cookies, WithClock(tickingClock()))
	ctx := context.Background()

	const toggles = 25
	tests := []struct {
		name      string
		layout    string
		remaining int
	}{
		// an odd number of toggles leaves (0, 0) flagged
		{"odd", "*..\n...\n..*", 1},
		{"even", "**.\n...\n...", 2},
	}
	ids := make([]uuid.UUID, len(tests))
	for i, test := range tests {
		b, err := mines.ParseLayout(test.layout)
		require.NoError(t, err)
		session := store.NewSession(b, nil)
		require.NoError(t, st.CreateSession(ctx, session))
		ids[i] = session.ID
	}

	flag := func(b *mines.Board) (mines.Result, error) {
		return command.Execute(b, command.Command{Op: command.Flag})
	}
	errs := make(chan error, len(ids)*(2*toggles+1))
	var wg sync.WaitGroup
	for i, id := range ids {
		n := 2 * toggles
		if tests[i].name == "odd" {
			n++
		}
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := s.apply(ctx, id, flag); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	for i, test := range tests {
		session, err := st.GetSession(ctx, ids[i])
		require.NoError(t, err)
		assert.Equal(t, test.remaining, session.Board.RemainingMineEstimate(), test.name)
	}
	assert.Zero(t, s.sessions.len())
}
