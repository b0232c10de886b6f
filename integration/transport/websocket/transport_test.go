package websocket_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/realtime/core/stream"
	"github.com/dmitrymomot/realtime/core/stream/streamtest"
	"github.com/dmitrymomot/realtime/integration/transport/websocket"
)

// wsServer upgrades every request and hands the server side of the socket to the test.
type wsServer struct {
	*httptest.Server

	mu      sync.Mutex
	queries []url.Values
	headers []http.Header
	reject  int
	conns   chan *gorilla.Conn
}

func newServer(t *testing.T) *wsServer {
	t.Helper()

	s := &wsServer{conns: make(chan *gorilla.Conn, 8)}
	upgrader := &gorilla.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.headers = append(s.headers, r.Header.Clone())
		reject := s.reject
		s.reject = 0
		s.mu.Unlock()

		if reject != 0 {
			http.Error(w, http.StatusText(reject), reject)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.conns <- conn
	}))
	t.Cleanup(func() {
		s.CloseClientConnections()
		s.Close()
	})
	return s
}

func (s *wsServer) accept(t *testing.T) *gorilla.Conn {
	t.Helper()
	select {
	case c := <-s.conns:
		t.Cleanup(func() { _ = c.Close() })
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no websocket connection accepted")
		return nil
	}
}

func (s *wsServer) rejectNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = status
}

func (s *wsServer) lastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

func (s *wsServer) lastHeader() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[len(s.headers)-1]
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func open(t *testing.T, srv *wsServer) (stream.Connection, *gorilla.Conn) {
	t.Helper()

	conn, err := websocket.New().Open(testCtx(t), srv.URL+"/notams", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.ForceClose() })

	return conn, srv.accept(t)
}

func TestTransport_Open(t *testing.T) {
	t.Parallel()

	srv := newServer(t)

	params := url.Values{}
	params.Set(stream.ParamOrderBy, stream.OrderByTimestamp)
	params.Set(stream.ParamStartAt, "1709294400000")
	params.Set(stream.ParamAuth, "token-1")

	tr := websocket.New(websocket.WithHeader("X-Client", "streamtail"))
	conn, err := tr.Open(testCtx(t), srv.URL+"/notams?auth=stale", params)
	require.NoError(t, err)
	defer conn.ForceClose()
	srv.accept(t)

	q := srv.lastQuery()
	assert.Equal(t, `"timestamp"`, q.Get("orderBy"))
	assert.Equal(t, "1709294400000", q.Get("startAt"))
	assert.Equal(t, []string{"token-1"}, q["auth"])
	assert.Equal(t, "streamtail", srv.lastHeader().Get("X-Client"))
}

func TestTransport_OpenErrors(t *testing.T) {
	t.Parallel()

	t.Run("handshake rejected", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)
		srv.rejectNext(http.StatusUnauthorized)

		_, err := websocket.New().Open(testCtx(t), srv.URL, nil)
		require.Error(t, err)

		var httpErr *stream.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		t.Parallel()

		_, err := websocket.New().Open(testCtx(t), "ftp://example.com/stream", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported scheme")
	})

	t.Run("unreachable host", func(t *testing.T) {
		t.Parallel()

		srv := newServer(t)
		target := "ws" + strings.TrimPrefix(srv.URL, "http")
		srv.Close()

		_, err := websocket.New().Open(testCtx(t), target, nil)
		require.Error(t, err)

		var httpErr *stream.HTTPError
		assert.False(t, errors.As(err, &httpErr))
	})
}

func TestConn_Next(t *testing.T) {
	t.Parallel()

	t.Run("object data", func(t *testing.T) {
		t.Parallel()

		conn, server := open(t, newServer(t))
		require.NoError(t, server.WriteMessage(gorilla.TextMessage,
			[]byte(`{"event":"put","id":"7","data":{"path":"/","data":42}}`)))

		msg, err := conn.Next(testCtx(t))
		require.NoError(t, err)
		assert.Equal(t, stream.EventPut, msg.Event)
		assert.Equal(t, "7", msg.ID)
		assert.JSONEq(t, `{"path":"/","data":42}`, string(msg.Data))
		assert.False(t, msg.ReceivedAt.IsZero())
	})

	t.Run("string data is unwrapped", func(t *testing.T) {
		t.Parallel()

		conn, server := open(t, newServer(t))
		require.NoError(t, server.WriteMessage(gorilla.TextMessage,
			[]byte(`{"event":"patch","data":"{\"path\":\"/a\",\"data\":{\"b\":1}}"}`)))

		msg, err := conn.Next(testCtx(t))
		require.NoError(t, err)
		assert.Equal(t, stream.EventPatch, msg.Event)
		assert.Equal(t, `{"path":"/a","data":{"b":1}}`, string(msg.Data))
	})

	t.Run("binary frames and control events", func(t *testing.T) {
		t.Parallel()

		conn, server := open(t, newServer(t))
		require.NoError(t, server.WriteMessage(gorilla.BinaryMessage, []byte(`{"event":"keep-alive","data":null}`)))
		require.NoError(t, server.WriteMessage(gorilla.TextMessage, []byte(`{"event":"cancel"}`)))

		msg, err := conn.Next(testCtx(t))
		require.NoError(t, err)
		assert.Equal(t, stream.EventKeepAlive, msg.Event)
		assert.Equal(t, "null", string(msg.Data))

		msg, err = conn.Next(testCtx(t))
		require.NoError(t, err)
		assert.Equal(t, stream.EventCancel, msg.Event)
		assert.Nil(t, msg.Data)
	})

	t.Run("frames without event are skipped", func(t *testing.T) {
		t.Parallel()

		conn, server := open(t, newServer(t))
		require.NoError(t, server.WriteMessage(gorilla.TextMessage, []byte(`{"data":1}`)))
		require.NoError(t, server.WriteMessage(gorilla.TextMessage, []byte(`{"event":"auth_revoked"}`)))

		msg, err := conn.Next(testCtx(t))
		require.NoError(t, err)
		assert.Equal(t, stream.EventAuthRevoked, msg.Event)
	})

	t.Run("malformed frame", func(t *testing.T) {
		t.Parallel()

		conn, server := open(t, newServer(t))
		require.NoError(t, server.WriteMessage(gorilla.TextMessage, []byte(`event: put`)))

		_, err := conn.Next(testCtx(t))
		require.ErrorIs(t, err, stream.ErrMalformedPayload)
	})

	t.Run("normal close ends stream", func(t *testing.T) {
		t.Parallel()

		conn, server := open(t, newServer(t))
		require.NoError(t, server.WriteMessage(gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "bye")))

		_, err := conn.Next(testCtx(t))
		require.ErrorIs(t, err, io.EOF)
		assert.True(t, stream.IsBenign(err))
	})

	t.Run("abnormal close", func(t *testing.T) {
		t.Parallel()

		conn, server := open(t, newServer(t))
		require.NoError(t, server.WriteMessage(gorilla.CloseMessage,
			gorilla.FormatCloseMessage(gorilla.CloseInternalServerErr, "boom")))

		_, err := conn.Next(testCtx(t))
		require.Error(t, err)
		assert.True(t, gorilla.IsCloseError(err, gorilla.CloseInternalServerErr))
	})

	t.Run("context cancel", func(t *testing.T) {
		t.Parallel()

		conn, _ := open(t, newServer(t))

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		_, err := conn.Next(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestConn_ForceClose(t *testing.T) {
	t.Parallel()

	conn, server := open(t, newServer(t))

	done := make(chan error, 1)
	go func() {
		_, err := conn.Next(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.ForceClose())
	require.NoError(t, conn.ForceClose(), "second close is a no-op")

	select {
	case err := <-done:
		require.ErrorIs(t, err, stream.ErrConnectionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after ForceClose")
	}

	_, _, err := server.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseNormalClosure))
}

func TestTransport_WithSession(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	rec := streamtest.NewRecorder()

	var calls atomic.Int32
	session, err := stream.NewSession(rec.Callback, "notams", srv.URL+"/notams", websocket.New(),
		stream.WithAuthenticator(func(ctx context.Context) (string, error) {
			return "token-" + strconv.Itoa(int(calls.Add(1))), nil
		}))
	require.NoError(t, err)
	require.NoError(t, session.Start())

	server := srv.accept(t)
	for _, f := range []string{
		`{"event":"put","data":{"path":"/","data":42}}`,
		`{"event":"keep-alive","data":null}`,
		`{"event":"patch","data":{"path":"/items/1","data":{"status":"open"}}}`,
	} {
		require.NoError(t, server.WriteMessage(gorilla.TextMessage, []byte(f)))
	}

	ctx := testCtx(t)
	require.NoError(t, rec.Await(ctx, 2))
	assert.Equal(t, []string{`42`, `{"status":"open"}`}, rec.Data())
	assert.Equal(t, "token-1", srv.lastQuery().Get("auth"))

	// A normal close ends the stream; the session dials again with a fresh credential.
	require.NoError(t, server.WriteMessage(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "rotate")))

	second := srv.accept(t)
	assert.Equal(t, "token-2", srv.lastQuery().Get("auth"))
	require.NoError(t, second.WriteMessage(gorilla.TextMessage,
		[]byte(`{"event":"put","data":{"path":"/","data":43}}`)))

	require.NoError(t, rec.Await(ctx, 3))
	assert.Equal(t, []string{`42`, `{"status":"open"}`, `43`}, rec.Data())
	assert.Equal(t, int32(2), calls.Load())

	require.NoError(t, session.Shutdown(ctx))
}
