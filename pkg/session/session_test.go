package session_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/diagram/internal/logging"
	"github.com/aretw0/diagram/pkg/domain"
	"github.com/aretw0/diagram/pkg/pending"
	"github.com/aretw0/diagram/pkg/ports"
	"github.com/aretw0/diagram/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_SetClientIDOnce(t *testing.T) {
	s := session.New("")
	defer s.Close()

	assert.ErrorIs(t, s.SetClientID(""), domain.ErrInvalidClientID)
	require.NoError(t, s.SetClientID("client-1"))
	assert.Equal(t, "client-1", s.ClientID())

	err := s.SetClientID("client-2")
	assert.ErrorIs(t, err, domain.ErrClientIDAlreadySet)
	assert.Equal(t, "client-1", s.ClientID(), "second call must not change the id")
}

func TestSession_SetClientIDAfterNew(t *testing.T) {
	s := newSession(t)
	assert.ErrorIs(t, s.SetClientID("other"), domain.ErrClientIDAlreadySet)
}

func TestSession_NoRetroactiveDelivery(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, session.WithLayoutKind(domain.LayoutNone))

	// 1. Everything before bind is dropped (Request fails outright).
	require.NoError(t, s.Dispatch(ctx, &domain.LayoutAction{}))
	_, err := s.Request(ctx, &domain.RequestBoundsAction{RequestID: "r1", NewRoot: newRoot("root")})
	assert.ErrorIs(t, err, domain.ErrNoEndpoint)
	require.NoError(t, s.SetModel(ctx, newRoot("root")))
	require.NoError(t, s.SetStatus(ctx, &domain.ServerStatus{Severity: domain.SeverityInfo, Message: "hi"}))
	assert.Equal(t, 0, s.PendingRequests())

	// 2. Bind later: nothing arrives.
	ep := &recorder{}
	s.SetRemoteEndpoint(ep)
	assert.Empty(t, ep.all())

	// 3. Only what is dispatched after bind is delivered.
	require.NoError(t, s.Dispatch(ctx, &domain.ServerStatusAction{Severity: domain.SeverityOK}))
	if assert.Len(t, ep.all(), 1) {
		assert.Equal(t, "client-1", ep.all()[0].ClientID)
		assert.Equal(t, domain.KindServerStatus, ep.all()[0].Action.Kind())
	}

	// The model set while unbound is still current.
	assert.Equal(t, "root", s.Model().ID)
}

func TestSession_RebindEndpoint(t *testing.T) {
	ctx := context.Background()
	first, second := &recorder{}, &recorder{}
	s := newSession(t, session.WithEndpoint(first))

	require.NoError(t, s.Dispatch(ctx, &domain.LayoutAction{}))
	s.SetRemoteEndpoint(second)
	require.NoError(t, s.Dispatch(ctx, &domain.LayoutAction{}))
	s.SetRemoteEndpoint(nil)
	require.NoError(t, s.Dispatch(ctx, &domain.LayoutAction{}))

	assert.Equal(t, 1, first.len())
	assert.Equal(t, 1, second.len())
}

func TestSession_MatchedResponseResolvesOnceAndIsNotForwarded(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	var forwarded atomic.Int64
	s := newSession(t,
		session.WithEndpoint(ep),
		session.WithHandler(domain.KindComputedBounds, session.HandlerFunc(func(context.Context, *session.Session, domain.Action) error {
			forwarded.Add(1)
			return nil
		})),
	)

	h, err := s.Request(ctx, &domain.RequestBoundsAction{RequestID: "req-1", NewRoot: newRoot("root")})
	require.NoError(t, err)
	assert.Equal(t, []string{domain.KindRequestBounds}, ep.kinds())

	response := &domain.ComputedBoundsAction{ResponseID: "req-1", Revision: 7}
	require.NoError(t, s.Accept(ctx, domain.ActionMessage{ClientID: "client-1", Action: response}))
	// A duplicate delivery matches nothing.
	require.NoError(t, s.Accept(ctx, domain.ActionMessage{ClientID: "client-1", Action: response}))

	resp, err := session.Await[*domain.ComputedBoundsAction](ctx, h)
	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.Revision)

	barrier(t, s)
	assert.Zero(t, forwarded.Load(), "correlated responses must not reach session handlers")
	assert.Equal(t, 0, s.PendingRequests())
}

func TestSession_UnmatchedResponseHasNoEffect(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	var forwarded atomic.Int64
	var resolved []bool
	var mu sync.Mutex
	s := newSession(t,
		session.WithEndpoint(ep),
		session.WithHandler(domain.KindComputedBounds, session.HandlerFunc(func(context.Context, *session.Session, domain.Action) error {
			forwarded.Add(1)
			return nil
		})),
		session.WithHooks(session.Hooks{
			OnResolve: func(_ context.Context, e *session.Event) {
				mu.Lock()
				defer mu.Unlock()
				resolved = append(resolved, e.Matched)
			},
		}),
	)
	before := s.Model()

	err := s.Accept(ctx, domain.ActionMessage{
		ClientID: "client-1",
		Action:   &domain.ComputedBoundsAction{ResponseID: "never-requested"},
	})
	require.NoError(t, err)

	barrier(t, s)
	assert.Zero(t, forwarded.Load())
	assert.Empty(t, ep.all())
	assert.Same(t, before, s.Model())
	mu.Lock()
	assert.Equal(t, []bool{false}, resolved)
	mu.Unlock()
}

func TestSession_ResponseWithoutIdentifierIsHandled(t *testing.T) {
	ctx := context.Background()
	handled := make(chan domain.Action, 1)
	s := newSession(t, session.WithHandler(domain.KindComputedBounds, session.HandlerFunc(
		func(_ context.Context, _ *session.Session, a domain.Action) error {
			handled <- a
			return nil
		})))

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.ComputedBoundsAction{}}))

	select {
	case a := <-handled:
		assert.Equal(t, domain.KindComputedBounds, a.Kind())
	case <-time.After(2 * time.Second):
		t.Fatal("action was not handled")
	}
}

func TestSession_DuplicateRequestID(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, session.WithEndpoint(&recorder{}))

	first, err := s.Request(ctx, &domain.RequestBoundsAction{RequestID: "dup"})
	require.NoError(t, err)

	_, err = s.Request(ctx, &domain.RequestBoundsAction{RequestID: "dup"})
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.ComputedBoundsAction{ResponseID: "dup", Revision: 1}}))
	resp, err := session.Await[*domain.ComputedBoundsAction](ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), resp.Revision)
}

func TestSession_RequestValidation(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, session.WithEndpoint(&recorder{}))

	_, err := s.Request(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrNilAction)

	_, err = s.Request(ctx, &domain.RequestBoundsAction{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequestID)

	assert.ErrorIs(t, s.Dispatch(ctx, nil), domain.ErrNilAction)
	assert.ErrorIs(t, s.Accept(ctx, domain.ActionMessage{}), domain.ErrNilAction)
}

func TestSession_RejectedRequest(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, session.WithEndpoint(&recorder{}))

	h, err := s.Request(ctx, &domain.RequestBoundsAction{RequestID: "r1"})
	require.NoError(t, err)

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.RejectAction{ResponseID: "r1", Message: "no canvas"}}))

	_, err = session.Await[*domain.ComputedBoundsAction](ctx, h)
	assert.ErrorIs(t, err, domain.ErrRequestRejected)
	assert.Contains(t, err.Error(), "no canvas")
}

func TestSession_AwaitUnexpectedType(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, session.WithEndpoint(&recorder{}))

	h, err := s.Request(ctx, &domain.RequestBoundsAction{RequestID: "r1"})
	require.NoError(t, err)

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.GenericAction{
		KindName: "custom",
		Payload:  map[string]any{"responseId": "r1"},
	}}))

	_, err = session.Await[*domain.ComputedBoundsAction](ctx, h)
	assert.ErrorIs(t, err, domain.ErrUnexpectedResponse)
}

func TestSession_CloseRejectsAllPending(t *testing.T) {
	ctx := context.Background()
	s := session.New("client-1", session.WithEndpoint(&recorder{}))

	const n = 4
	handles := make([]*pending.Handle, 0, n)
	for i := 0; i < n; i++ {
		h, err := s.Request(ctx, &domain.RequestBoundsAction{RequestID: fmt.Sprintf("r%d", i)})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	assert.Equal(t, n, s.Close())
	assert.Equal(t, 0, s.PendingRequests())
	assert.Equal(t, 0, s.Close(), "second close is a no-op")

	for _, h := range handles {
		_, err := h.Result()
		assert.ErrorIs(t, err, domain.ErrSessionClosed)
	}

	// A late response resolves nothing, and every operation now fails identically.
	assert.ErrorIs(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.ComputedBoundsAction{ResponseID: "r0"}}), domain.ErrSessionClosed)
	assert.ErrorIs(t, s.Dispatch(ctx, &domain.LayoutAction{}), domain.ErrSessionClosed)
	_, err := s.Request(ctx, &domain.RequestBoundsAction{RequestID: "r9"})
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.ErrorIs(t, s.SetModel(ctx, newRoot("root")), domain.ErrSessionClosed)
	assert.ErrorIs(t, s.SetStatus(ctx, nil), domain.ErrSessionClosed)
	assert.Nil(t, s.RemoteEndpoint())
}

func TestSession_SetModelAndUpdateModelAreDistinguishable(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	s := newSession(t, session.WithEndpoint(ep), session.WithLayoutKind(domain.LayoutNone))

	require.NoError(t, s.SetModel(ctx, newRoot("root", "a")))
	require.NoError(t, s.UpdateModel(ctx, newRoot("root", "a")))

	msgs := ep.all()
	require.Len(t, msgs, 2)

	set, ok := msgs[0].Action.(*domain.SetModelAction)
	require.True(t, ok)
	update, ok := msgs[1].Action.(*domain.UpdateModelAction)
	require.True(t, ok)

	assert.NotEqual(t, set.Kind(), update.Kind())
	assert.True(t, update.Animate)
	assert.Equal(t, int64(1), set.NewRoot.Revision)
	assert.Equal(t, int64(2), update.NewRoot.Revision)
	assert.Same(t, update.NewRoot, s.Model())
}

func TestSession_NilModel(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	assert.ErrorIs(t, s.SetModel(ctx, nil), domain.ErrNilModel)
	assert.ErrorIs(t, s.UpdateModel(ctx, nil), domain.ErrNilModel)
	assert.True(t, s.Model().IsEmpty())
}

func TestSession_AutomaticLayoutRunsBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	engine := &countingEngine{endpoint: ep}
	s := newSession(t,
		session.WithEndpoint(ep),
		session.WithLayoutEngine(engine),
		session.WithLayoutKind(domain.LayoutAutomatic),
	)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SetModel(ctx, newRoot("root", "a")))
		require.NoError(t, s.UpdateModel(ctx, newRoot("root", "a")))
	}

	assert.Equal(t, int64(6), engine.calls.Load())
	// Each pass saw only the messages of the previous calls.
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, engine.sentSoFar)

	sent := ep.all()[5].Action.(*domain.UpdateModelAction)
	assert.NotNil(t, sent.NewRoot.Children[0].Position, "dispatched model carries the layout")
}

func TestSession_NoneLayoutNeverRuns(t *testing.T) {
	ctx := context.Background()
	engine := &countingEngine{}
	s := newSession(t,
		session.WithEndpoint(&recorder{}),
		session.WithLayoutEngine(engine),
		session.WithLayoutKind(domain.LayoutNone),
	)

	require.NoError(t, s.SetModel(ctx, newRoot("root")))
	require.NoError(t, s.UpdateModel(ctx, newRoot("root")))
	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.LayoutAction{}}))
	barrier(t, s)

	assert.Zero(t, engine.calls.Load())
}

func TestSession_ManualLayoutOnlyOnRequest(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	engine := &countingEngine{}
	s := newSession(t,
		session.WithEndpoint(ep),
		session.WithLayoutEngine(engine),
		session.WithLayoutKind(domain.LayoutManual),
	)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.SetModel(ctx, newRoot("root", "a", "b")))
	}
	assert.Zero(t, engine.calls.Load())

	current := s.Model()
	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.LayoutAction{}}))
	barrier(t, s)

	assert.Equal(t, int64(1), engine.calls.Load())
	last := ep.all()[ep.len()-1].Action
	update, ok := last.(*domain.UpdateModelAction)
	require.True(t, ok, "forced layout is sent as an animated update")
	assert.NotNil(t, update.NewRoot.Children[0].Position)
	assert.Nil(t, current.Children[0].Position, "the previous model is not mutated in place")
}

func TestSession_NoEngineSkipsLayout(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	s := newSession(t, session.WithEndpoint(ep), session.WithLayoutKind(domain.LayoutAutomatic))

	require.NoError(t, s.SetModel(ctx, newRoot("root", "a")))
	assert.Nil(t, s.Model().Children[0].Position)
	assert.Equal(t, []string{domain.KindSetModel}, ep.kinds())
}

func TestSession_LayoutFailureKeepsPreviousModel(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	engine := &countingEngine{}
	s := newSession(t,
		session.WithEndpoint(ep),
		session.WithLayoutEngine(engine),
	)

	require.NoError(t, s.SetModel(ctx, newRoot("first", "a")))
	previous := s.Model()

	engine.err = errEngine
	err := s.UpdateModel(ctx, newRoot("second", "b"))
	assert.ErrorIs(t, err, domain.ErrLayoutFailed)
	assert.ErrorIs(t, err, errEngine)

	assert.Same(t, previous, s.Model())
	assert.Equal(t, int64(1), s.Revision())
	assert.Equal(t, []string{domain.KindSetModel}, ep.kinds(), "nothing is sent for a failed update")
}

func TestSession_RequestModelStoresOptions(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	s := newSession(t, session.WithEndpoint(ep), session.WithLayoutKind(domain.LayoutNone))

	assert.Empty(t, s.Options())
	assert.NotNil(t, s.Options())

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.RequestModelAction{
		Options:   map[string]string{"diagramType": "class"},
		RequestID: "rm-1",
	}}))
	barrier(t, s)

	assert.Equal(t, map[string]string{"diagramType": "class"}, s.Options())

	// Other inbound actions leave the options alone.
	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.LayoutAction{}}))
	barrier(t, s)
	assert.Equal(t, map[string]string{"diagramType": "class"}, s.Options())

	// The returned map is a copy.
	s.Options()["diagramType"] = "mutated"
	assert.Equal(t, "class", s.Options()["diagramType"])

	// The answer is a setModel echoing the request id.
	require.NotEmpty(t, ep.all())
	set, ok := ep.all()[0].Action.(*domain.SetModelAction)
	require.True(t, ok)
	assert.Equal(t, "rm-1", set.ResponseID)

	// The next model request overwrites.
	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.RequestModelAction{
		Options: map[string]string{"diagramType": "state"},
	}}))
	barrier(t, s)
	assert.Equal(t, map[string]string{"diagramType": "state"}, s.Options())
}

type stubSource struct {
	mu      sync.Mutex
	options []map[string]string
	err     error
}

func (src *stubSource) Generate(_ context.Context, clientID string, options map[string]string) (*domain.ModelRoot, error) {
	src.mu.Lock()
	src.options = append(src.options, options)
	src.mu.Unlock()
	if src.err != nil {
		return nil, src.err
	}
	return newRoot(options["diagramType"], "n1"), nil
}

func TestSession_RequestModelUsesModelSource(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	engine := &countingEngine{}
	src := &stubSource{}
	s := newSession(t,
		session.WithEndpoint(ep),
		session.WithModelSource(src),
		session.WithLayoutEngine(engine),
		session.WithLayoutKind(domain.LayoutAutomatic),
	)

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.RequestModelAction{
		Options: map[string]string{"diagramType": "class"},
	}}))
	barrier(t, s)

	assert.Equal(t, "class", s.Model().ID)
	assert.Equal(t, int64(1), engine.calls.Load())
	assert.Equal(t, []string{domain.KindSetModel}, ep.kinds())
}

func TestSession_RequestModelSourceFailureReportsStatus(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	s := newSession(t,
		session.WithEndpoint(ep),
		session.WithModelSource(&stubSource{err: domain.ErrModelNotFound}),
	)

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.RequestModelAction{}}))
	barrier(t, s)

	assert.True(t, s.Model().IsEmpty())
	require.Equal(t, []string{domain.KindServerStatus}, ep.kinds())
	status := s.Status()
	require.NotNil(t, status)
	assert.Equal(t, domain.SeverityError, status.Severity)
}

func TestSession_SetStatus(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	s := newSession(t, session.WithEndpoint(ep))
	model := s.Model()

	require.NoError(t, s.SetStatus(ctx, &domain.ServerStatus{Severity: domain.SeverityWarning, Message: "slow"}))
	assert.Equal(t, "slow", s.Status().Message)

	require.NoError(t, s.SetStatus(ctx, nil))
	assert.Nil(t, s.Status())

	msgs := ep.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.SeverityWarning, msgs[0].Action.(*domain.ServerStatusAction).Severity)
	assert.Equal(t, domain.SeverityNone, msgs[1].Action.(*domain.ServerStatusAction).Severity)
	assert.Same(t, model, s.Model(), "status has no effect on the model")
}

func TestSession_UnknownActionIsDropped(t *testing.T) {
	ctx := context.Background()
	var handled []*session.Event
	var mu sync.Mutex
	s := newSession(t, session.WithHooks(session.Hooks{
		OnHandled: func(_ context.Context, e *session.Event) {
			mu.Lock()
			defer mu.Unlock()
			handled = append(handled, e)
		},
	}))

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.GenericAction{KindName: "selectElements"}}))
	barrier(t, s)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, handled)
	assert.Equal(t, "selectElements", handled[0].Kind)
	assert.NoError(t, handled[0].Err)
}

func TestSession_HandlerCanAwaitResponse(t *testing.T) {
	// A handler blocked on a response must not prevent the response from being correlated.
	ctx := context.Background()
	ep := &recorder{}
	got := make(chan error, 1)
	s := newSession(t,
		session.WithEndpoint(ep),
		session.WithHandler("measure", session.HandlerFunc(func(ctx context.Context, s *session.Session, _ domain.Action) error {
			h, err := s.Request(ctx, &domain.RequestBoundsAction{RequestID: "m1"})
			if err != nil {
				got <- err
				return err
			}
			_, err = session.Await[*domain.ComputedBoundsAction](ctx, h)
			got <- err
			return err
		})),
	)

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.GenericAction{KindName: "measure"}}))
	require.Eventually(t, func() bool { return s.PendingRequests() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Accept(ctx, domain.ActionMessage{Action: &domain.ComputedBoundsAction{ResponseID: "m1"}}))

	select {
	case err := <-got:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("handler never received its response")
	}
}

func TestSession_ConcurrentModelUpdatesStayOrdered(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	s := newSession(t, session.WithEndpoint(ep), session.WithLayoutEngine(&countingEngine{}))

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				assert.NoError(t, s.UpdateModel(ctx, newRoot(fmt.Sprintf("w%d-%d", w, i), "a")))
			}
		}(w)
	}
	wg.Wait()

	msgs := ep.all()
	require.Len(t, msgs, writers*perWriter)
	for i, msg := range msgs {
		update := msg.Action.(*domain.UpdateModelAction)
		assert.Equal(t, int64(i+1), update.NewRoot.Revision, "messages leave in revision order")
	}
	assert.Equal(t, int64(writers*perWriter), s.Revision())
	assert.Same(t, msgs[len(msgs)-1].Action.(*domain.UpdateModelAction).NewRoot, s.Model())
}

func TestSession_RestoreAndSnapshot(t *testing.T) {
	s := newSession(t)
	root := newRoot("restored", "a")

	s.Restore(&domain.Snapshot{
		ClientID: "client-1",
		Options:  map[string]string{"diagramType": "flow"},
		Model:    root,
		Revision: 41,
	})

	assert.Equal(t, "restored", s.Model().ID)
	assert.NotSame(t, root, s.Model())
	assert.Equal(t, "flow", s.Options()["diagramType"])

	require.NoError(t, s.SetModel(context.Background(), newRoot("next")))
	assert.Equal(t, int64(42), s.Revision(), "revisions continue from the snapshot")

	snap := s.Snapshot()
	assert.Equal(t, "client-1", snap.ClientID)
	assert.Equal(t, int64(42), snap.Revision)
	assert.Equal(t, "next", snap.Model.ID)
	assert.False(t, snap.SavedAt.IsZero())
}

// measuringClient answers every requestBounds by sending computed bounds back
// through the session, the way a browser client does after rendering.
type measuringClient struct {
	recorder
	session *session.Session
}

func (c *measuringClient) Accept(msg domain.ActionMessage) {
	c.recorder.Accept(msg)
	req, ok := msg.Action.(*domain.RequestBoundsAction)
	if !ok {
		return
	}
	var bounds []domain.ElementAndBounds
	req.NewRoot.Walk(func(el *domain.Element) bool {
		bounds = append(bounds, domain.ElementAndBounds{
			ElementID: el.ID,
			NewBounds: domain.Bounds{X: 5, Y: 6, Width: 70, Height: 30},
		})
		return true
	})
	go func() {
		_ = c.session.Accept(context.Background(), domain.ActionMessage{
			Action: &domain.ComputedBoundsAction{ResponseID: req.RequestID, Bounds: bounds},
		})
	}()
}

func TestSession_ClientLayoutRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &measuringClient{}
	engine := &countingEngine{}
	s := newSession(t,
		session.WithClientLayout(true),
		session.WithLayoutEngine(engine),
		session.WithLayoutKind(domain.LayoutAutomatic),
	)
	client.session = s
	s.SetRemoteEndpoint(client)

	require.NoError(t, s.SetModel(ctx, newRoot("root", "a")))

	assert.Equal(t, []string{domain.KindRequestBounds, domain.KindSetModel}, client.kinds())
	child := s.Model().Find("a")
	require.NotNil(t, child)
	require.NotNil(t, child.Size)
	assert.Equal(t, 70.0, child.Size.Width)
	assert.Equal(t, int64(1), engine.calls.Load())
	assert.Equal(t, 0, s.PendingRequests())
}

func TestSession_ClientLayoutHonorsContext(t *testing.T) {
	ep := &recorder{}
	s := newSession(t, session.WithClientLayout(true), session.WithEndpoint(ep))
	before := s.Model()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.SetModel(ctx, newRoot("root", "a"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Same(t, before, s.Model())
	assert.Equal(t, 0, s.PendingRequests(), "the abandoned request is withdrawn")
}

func TestSession_ReleaseEndpoint(t *testing.T) {
	old, current := &recorder{}, &recorder{}
	s := newSession(t, session.WithEndpoint(old))

	s.SetRemoteEndpoint(current)
	assert.False(t, s.ReleaseEndpoint(old), "a replaced endpoint cannot unbind its successor")
	assert.Same(t, current, s.RemoteEndpoint())

	assert.True(t, s.ReleaseEndpoint(current))
	assert.Nil(t, s.RemoteEndpoint())
	assert.False(t, s.ReleaseEndpoint(nil))
}

func TestSession_ReleaseEndpointFunc(t *testing.T) {
	bound := ports.EndpointFunc(func(domain.ActionMessage) {})
	s := newSession(t, session.WithEndpoint(bound))

	assert.NotPanics(t, func() {
		assert.False(t, s.ReleaseEndpoint(ports.EndpointFunc(func(domain.ActionMessage) {})))
	})
	assert.NotNil(t, s.RemoteEndpoint(), "an uncomparable endpoint stays bound")

	s.SetRemoteEndpoint(&recorder{})
	assert.NotPanics(t, func() {
		assert.False(t, s.ReleaseEndpoint(bound))
	})
}

func TestSession_ConcurrentStatusStaysOrdered(t *testing.T) {
	ctx := context.Background()
	ep := &recorder{}
	s := newSession(t, session.WithEndpoint(ep))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msg := fmt.Sprintf("status-%d", i)
			assert.NoError(t, s.SetStatus(ctx, &domain.ServerStatus{Severity: domain.SeverityInfo, Message: msg}))
		}()
	}
	wg.Wait()

	msgs := ep.all()
	require.Len(t, msgs, 50)
	last := msgs[len(msgs)-1].Action.(*domain.ServerStatusAction)
	assert.Equal(t, s.Status().Message, last.Message, "the client shows the stored status")
}

// closingSource blocks until its context is canceled and then fails.
type closingSource struct {
	started chan struct{}
}

func (c *closingSource) Generate(ctx context.Context, _ string, _ map[string]string) (*domain.ModelRoot, error) {
	close(c.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSession_GenerationFailureAfterCloseIsLogged(t *testing.T) {
	var logs bytes.Buffer
	source := &closingSource{started: make(chan struct{})}
	s := session.New("client-1",
		session.WithModelSource(source),
		session.WithEndpoint(&recorder{}),
		session.WithLogger(logging.New(slog.LevelDebug, &logs, logging.FormatJSON)),
	)

	require.NoError(t, s.Accept(context.Background(), domain.ActionMessage{Action: &domain.RequestModelAction{}}))
	select {
	case <-source.started:
	case <-time.After(2 * time.Second):
		t.Fatal("model source was not called")
	}
	s.Close()

	assert.Contains(t, logs.String(), "Cannot report model generation failure")
	assert.Contains(t, logs.String(), domain.ErrSessionClosed.Error())
}
