package sse_test

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/realtime/core/stream"
	"github.com/dmitrymomot/realtime/core/stream/streamtest"
	"github.com/dmitrymomot/realtime/integration/transport/sse"
	"github.com/dmitrymomot/realtime/integration/transport/sse/ssetest"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func open(t *testing.T, tr *sse.Transport, srv *ssetest.Server, params url.Values) (*sse.Conn, *ssetest.Stream) {
	t.Helper()
	ctx := testCtx(t)

	conn, err := tr.Open(ctx, srv.URL+"/notams.json", params)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.ForceClose() })

	st, err := srv.Accept(ctx)
	require.NoError(t, err)

	c, ok := conn.(*sse.Conn)
	require.True(t, ok)
	return c, st
}

func next(t *testing.T, conn stream.Connection) stream.Message {
	t.Helper()
	msg, err := conn.Next(testCtx(t))
	require.NoError(t, err)
	return msg
}

func TestTransport_Open(t *testing.T) {
	t.Parallel()

	srv := ssetest.NewServer()
	defer srv.Close()

	params := url.Values{}
	params.Set(stream.ParamOrderBy, stream.OrderByTimestamp)
	params.Set(stream.ParamStartAt, "1709294400000")
	params.Set(stream.ParamAuth, "token-1")

	tr := sse.New(sse.WithHeader("X-Client", "streamtail"))
	ctx := testCtx(t)
	conn, err := tr.Open(ctx, srv.URL+"/notams.json?print=silent&auth=stale", params)
	require.NoError(t, err)
	defer conn.ForceClose()

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/notams.json", reqs[0].Path)
	assert.Equal(t, `"timestamp"`, reqs[0].Query.Get("orderBy"))
	assert.Equal(t, "1709294400000", reqs[0].Query.Get("startAt"))
	assert.Equal(t, []string{"token-1"}, reqs[0].Query["auth"], "params replace endpoint query values")
	assert.Equal(t, "silent", reqs[0].Query.Get("print"))
	assert.Equal(t, "text/event-stream", reqs[0].Header.Get("Accept"))
	assert.Equal(t, "streamtail", reqs[0].Header.Get("X-Client"))
}

func TestTransport_OpenErrors(t *testing.T) {
	t.Parallel()

	t.Run("http error", func(t *testing.T) {
		t.Parallel()

		srv := ssetest.NewServer()
		defer srv.Close()
		srv.FailNext(http.StatusUnauthorized)

		_, err := sse.New().Open(testCtx(t), srv.URL, nil)

		var httpErr *stream.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
		assert.True(t, stream.IsBenign(err))
	})

	t.Run("bad endpoint", func(t *testing.T) {
		t.Parallel()

		_, err := sse.New().Open(testCtx(t), "ftp://example.test/a", nil)
		assert.Error(t, err)

		_, err = sse.New().Open(testCtx(t), "://bad", nil)
		assert.Error(t, err)
	})
}

func TestConn_Parsing(t *testing.T) {
	t.Parallel()

	srv := ssetest.NewServer()
	defer srv.Close()

	conn, st := open(t, sse.New(), srv, nil)

	t.Run("named event with id", func(t *testing.T) {
		require.True(t, st.Send(ssetest.Event{Name: "put", ID: "7", Data: `{"path":"/","data":42}`}))
		msg := next(t, conn)
		assert.Equal(t, stream.EventPut, msg.Event)
		assert.Equal(t, "7", msg.ID)
		assert.JSONEq(t, `{"path":"/","data":42}`, string(msg.Data))
		assert.False(t, msg.ReceivedAt.IsZero())
	})

	t.Run("multi-line data with crlf and comments", func(t *testing.T) {
		require.True(t, st.Raw(": ping\r\nevent: patch\r\ndata: {\"path\":\"/a\",\r\ndata:\"data\":1}\r\n\r\n"))
		msg := next(t, conn)
		assert.Equal(t, stream.EventPatch, msg.Event)
		assert.Equal(t, "{\"path\":\"/a\",\n\"data\":1}", string(msg.Data))
		assert.Equal(t, "7", msg.ID, "id persists until replaced")
	})

	t.Run("keep-alive frame", func(t *testing.T) {
		require.True(t, st.Send(ssetest.KeepAlive()))
		msg := next(t, conn)
		assert.Equal(t, stream.EventKeepAlive, msg.Event)
		assert.Equal(t, "null", string(msg.Data))
	})

	t.Run("unnamed event defaults to message", func(t *testing.T) {
		require.True(t, st.Raw("data: hello\n\n"))
		msg := next(t, conn)
		assert.Equal(t, stream.EventType("message"), msg.Event)
		assert.Equal(t, "hello", string(msg.Data))
	})

	t.Run("event without data", func(t *testing.T) {
		require.True(t, st.Raw("id: 8\n\nevent: cancel\n\n"))
		msg := next(t, conn)
		assert.Equal(t, stream.EventCancel, msg.Event)
		assert.Nil(t, msg.Data)
		assert.Equal(t, "8", msg.ID)
		assert.Equal(t, "8", conn.LastEventID())
	})
}

func TestConn_ForceClose(t *testing.T) {
	t.Parallel()

	srv := ssetest.NewServer()
	defer srv.Close()

	conn, st := open(t, sse.New(), srv, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Next(context.Background())
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.ForceClose())
	require.NoError(t, conn.ForceClose())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, stream.ErrConnectionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked read was not released by ForceClose")
	}

	select {
	case <-st.Gone():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not observe the disconnect")
	}

	_, err := conn.Next(context.Background())
	assert.ErrorIs(t, err, stream.ErrConnectionClosed)
	assert.Len(t, srv.Requests(), 1, "no reconnect after ForceClose")
}

func TestConn_NextHonorsContext(t *testing.T) {
	t.Parallel()

	srv := ssetest.NewServer()
	defer srv.Close()

	conn, _ := open(t, sse.New(), srv, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := conn.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_EndOfStream(t *testing.T) {
	t.Parallel()

	srv := ssetest.NewServer()
	defer srv.Close()

	conn, st := open(t, sse.New(), srv, nil)

	require.True(t, st.Send(ssetest.Event{Name: "put", ID: "41", Retry: 10, Data: `{"path":"/","data":1}`}))
	assert.Equal(t, "41", next(t, conn).ID)

	st.End()

	_, err := conn.Next(testCtx(t))
	require.ErrorIs(t, err, io.EOF)
	assert.True(t, stream.IsBenign(err))

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, srv.Requests(), 1, "the transport never reconnects on its own")
}

func TestTransport_WithSession(t *testing.T) {
	t.Parallel()

	srv := ssetest.NewServer()
	defer srv.Close()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	clock := func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Minute)
	}

	var authCalls atomic.Int32
	rec := streamtest.NewRecorder()

	session, err := stream.NewSession(rec.Callback, "notams", srv.URL+"/notams.json", sse.New(),
		stream.WithClock(clock),
		stream.WithAuthenticator(func(ctx context.Context) (string, error) {
			return "tok-" + strconv.Itoa(int(authCalls.Add(1))), nil
		}))
	require.NoError(t, err)
	require.NoError(t, session.Start())

	ctx := testCtx(t)
	first, err := srv.Accept(ctx)
	require.NoError(t, err)
	first.Send(ssetest.Put("/", `42`))
	first.Send(ssetest.KeepAlive())
	first.End()

	second, err := srv.Accept(ctx)
	require.NoError(t, err)
	second.Send(ssetest.Put("/", `43`))
	second.Send(ssetest.AuthRevoked())

	third, err := srv.Accept(ctx)
	require.NoError(t, err)
	third.Send(ssetest.Patch("/items/1", `{"status":"open"}`))

	require.NoError(t, rec.Await(ctx, 3))
	assert.Equal(t, []string{`42`, `43`, `{"status":"open"}`}, rec.Data())

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	for i, req := range reqs {
		want := base.Add(time.Duration(i+1)*time.Minute - stream.DefaultLookback).UnixMilli()
		assert.Equal(t, strconv.FormatInt(want, 10), req.Query.Get(stream.ParamStartAt), "connection %d", i)
		assert.Equal(t, "tok-"+strconv.Itoa(i+1), req.Query.Get(stream.ParamAuth), "connection %d", i)
	}
	assert.Equal(t, int32(3), authCalls.Load())

	require.NoError(t, session.Shutdown(ctx))
	select {
	case <-third.Gone():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not sever the connection")
	}
}
