package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionToken = "abcd1234abcd1234"

type captured struct {
	mu       sync.Mutex
	payloads []Payload
}

func (c *captured) handle(p Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
}

func (c *captured) all() []Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Payload(nil), c.payloads...)
}

func newTestSession(t *testing.T, handler Handler) *httptest.Server {
	t.Helper()
	s := &Server{token: sessionToken, handler: handler}
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func sealed(t *testing.T, p Payload, token string) string {
	t.Helper()
	env, err := Seal(p, token)
	require.NoError(t, err)
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return string(b)
}

func TestShareAcceptsMatchingToken(t *testing.T) {
	var got captured
	ts := newTestSession(t, got.handle)
	before := testutil.ToFloat64(requestsTotal.WithLabelValues(resultAccepted))

	err := NewClient(5*time.Second).Send(context.Background(), ts.URL+SharePath, sessionToken, Payload{
		DeviceName: "Laptop",
		Name:       "Home",
		Content:    `{"outbounds":[]}`,
		Token:      sessionToken,
	})
	require.NoError(t, err)

	payloads := got.all()
	require.Len(t, payloads, 1)
	assert.Equal(t, "Home", payloads[0].Name)
	assert.Equal(t, KindProfile, payloads[0].Type)
	assert.Equal(t, `{"outbounds":[]}`, payloads[0].Content)
	assert.Equal(t, before+1, testutil.ToFloat64(requestsTotal.WithLabelValues(resultAccepted)))
}

func TestShareRespondsOK(t *testing.T) {
	var got captured
	ts := newTestSession(t, got.handle)

	status, body := post(t, ts.URL+SharePath+"/", sealed(t, Payload{Name: "Home", Token: sessionToken}, sessionToken))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)
	assert.Len(t, got.all(), 1)
}

func TestShareRejectsForeignEmbeddedToken(t *testing.T) {
	var got captured
	ts := newTestSession(t, got.handle)

	err := NewClient(5*time.Second).Send(context.Background(), ts.URL+SharePath, sessionToken, Payload{
		Name:  "Home",
		Token: "wrong",
	})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusForbidden, te.Status)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.Empty(t, got.all())
}

func TestShareChecksTokenBeforeContent(t *testing.T) {
	var got captured
	ts := newTestSession(t, got.handle)

	for _, p := range []Payload{
		{Name: "", Token: "wrong"},
		{Type: "folder", Name: "x", Token: "wrong"},
	} {
		status, _ := post(t, ts.URL+SharePath, sealed(t, p, sessionToken))
		assert.Equal(t, http.StatusForbidden, status, "%+v", p)
	}
	assert.Empty(t, got.all())
}

func TestShareRejectsWrongKey(t *testing.T) {
	var got captured
	ts := newTestSession(t, got.handle)

	status, _ := post(t, ts.URL+SharePath, sealed(t, Payload{Name: "Home", Token: sessionToken}, "other-token"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Empty(t, got.all())
}

func TestShareRejectsGarbageCiphertext(t *testing.T) {
	var got captured
	ts := newTestSession(t, got.handle)

	for _, data := range []string{"not base64 at all!", "Z2FyYmFnZQ=="} {
		status, _ := post(t, ts.URL+SharePath, `{"data":"`+data+`"}`)
		assert.Equal(t, http.StatusForbidden, status, data)
	}
	assert.Empty(t, got.all())
}

func TestShareBadRequests(t *testing.T) {
	var got captured
	ts := newTestSession(t, got.handle)

	cases := map[string]string{
		"empty body":     "",
		"blank body":     "   ",
		"not json":       "data=abc",
		"missing data":   `{"other":"x"}`,
		"empty data":     `{"data":""}`,
		"undecodable":    sealed(t, Payload{Name: "", Token: sessionToken}, sessionToken),
		"bad kind value": sealed(t, Payload{Type: "folder", Name: "x", Token: sessionToken}, sessionToken),
	}
	for name, body := range cases {
		status, _ := post(t, ts.URL+SharePath, body)
		assert.Equal(t, http.StatusBadRequest, status, name)
	}
	assert.Empty(t, got.all())
}

func TestShareNotFound(t *testing.T) {
	var got captured
	ts := newTestSession(t, got.handle)
	body := sealed(t, Payload{Name: "Home", Token: sessionToken}, sessionToken)

	resp, err := http.Get(ts.URL + SharePath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, path := range []string{"/", "/other", "/share/extra", "/SHARE"} {
		status, _ := post(t, ts.URL+path, body)
		assert.Equal(t, http.StatusNotFound, status, path)
	}

	req, err := http.NewRequest(http.MethodPut, ts.URL+SharePath, strings.NewReader(body))
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Empty(t, got.all())
}

func TestShareHandlerPanicIsInternalError(t *testing.T) {
	ts := newTestSession(t, func(Payload) { panic("store exploded") })

	status, _ := post(t, ts.URL+SharePath, sealed(t, Payload{Name: "Home", Token: sessionToken}, sessionToken))
	assert.Equal(t, http.StatusInternalServerError, status)
}

func loopback() ([]Interface, error) {
	return []Interface{{Name: "test0", IP: net.IPv4(10, 0, 0, 7)}}, nil
}

func TestNewServerSession(t *testing.T) {
	s, err := NewServer(ServerOptions{ListenHost: "127.0.0.1", Interfaces: loopback}, func(Payload) {})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	assert.Len(t, s.Token(), 32)
	assert.True(t, strings.HasPrefix(s.URL(), "http://10.0.0.7:"), s.URL())
	assert.True(t, strings.HasSuffix(s.URL(), SharePath), s.URL())
	assert.Equal(t, Code{URL: s.URL(), Token: s.Token()}, s.Code())

	other, err := NewServer(ServerOptions{ListenHost: "127.0.0.1", Interfaces: loopback}, func(Payload) {})
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Stop(context.Background()) })
	assert.NotEqual(t, s.Token(), other.Token())
}

func TestServerStartStop(t *testing.T) {
	var got captured
	s, err := NewServer(ServerOptions{ListenHost: "127.0.0.1", Interfaces: loopback}, got.handle)
	require.NoError(t, err)
	s.Start()

	_, port, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(t, err)
	local := "http://127.0.0.1:" + port + SharePath

	err = NewClient(5*time.Second).Send(context.Background(), local, s.Token(), Payload{Name: "Home", Token: s.Token()})
	require.NoError(t, err)
	assert.Len(t, got.all(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	err = NewClient(time.Second).Send(context.Background(), local, s.Token(), Payload{Name: "Home", Token: s.Token()})
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestStopReleasesPortWithoutStart(t *testing.T) {
	s, err := NewServer(ServerOptions{ListenHost: "127.0.0.1", Interfaces: loopback}, func(Payload) {})
	require.NoError(t, err)
	addr := s.listener.Addr().String()

	require.NoError(t, s.Stop(context.Background()))

	ln, err := net.Listen("tcp4", addr)
	require.NoError(t, err)
	require.NoError(t, ln.Close())

	// a second Stop is harmless
	assert.NoError(t, s.Stop(context.Background()))
}

func TestNewServerWithoutInterface(t *testing.T) {
	none := func() ([]Interface, error) {
		return []Interface{{Name: "lo", IP: net.IPv4(127, 0, 0, 1)}, {Name: "v6", IP: net.ParseIP("fe80::1")}}, nil
	}
	_, err := NewServer(ServerOptions{ListenHost: "127.0.0.1", Interfaces: none}, func(Payload) {})
	assert.ErrorIs(t, err, ErrNoInterface)
}
