package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	authURL = "https://auth.test"
	apiURL  = "https://api.test"
)

// mockTransport is an http.RoundTripper that delegates to a handler function.
type mockTransport struct {
	fn func(*http.Request) (*http.Response, error)
}

func (m *mockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.fn(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func loginBody(token string) string {
	return `{"data":{"passwordLogin":{"accessToken":"` + token + `"}}}`
}

type captured struct {
	Host          string
	Authorization string
	ContentType   string
	Body          string
}

// fakeBackend routes requests by host and records everything it sees.
type fakeBackend struct {
	mu       sync.Mutex
	requests []captured
	logins   atomic.Int32

	login func(n int32) *http.Response
	api   func(body string) *http.Response
}

func (f *fakeBackend) roundTrip(req *http.Request) (*http.Response, error) {
	b, _ := io.ReadAll(req.Body)
	f.mu.Lock()
	f.requests = append(f.requests, captured{
		Host:          req.URL.Host,
		Authorization: req.Header.Get("Authorization"),
		ContentType:   req.Header.Get("Content-Type"),
		Body:          string(b),
	})
	f.mu.Unlock()

	switch req.URL.Host {
	case "auth.test":
		return f.login(f.logins.Add(1)), nil
	case "api.test":
		if f.api == nil {
			return jsonResponse(http.StatusOK, `{"data":{}}`), nil
		}
		return f.api(string(b)), nil
	}
	return nil, errors.New("unexpected host " + req.URL.Host)
}

func (f *fakeBackend) apiRequests() []captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []captured
	for _, r := range f.requests {
		if r.Host == "api.test" {
			out = append(out, r)
		}
	}
	return out
}

func newTestClient(t *testing.T, f *fakeBackend) *Client {
	t.Helper()
	c, err := New(
		Credentials{Identifier: "a@b.com", Secret: "pw"},
		Endpoints{AuthBaseURL: authURL, APIBaseURL: apiURL},
		WithHTTPClient(&http.Client{Transport: &mockTransport{fn: f.roundTrip}}),
	)
	require.NoError(t, err)
	return c
}

func TestNew_NoNetworkIO(t *testing.T) {
	f := &fakeBackend{login: func(int32) *http.Response { return jsonResponse(200, loginBody("T")) }}
	c := newTestClient(t, f)

	assert.NotNil(t, c)
	assert.Empty(t, f.requests, "construction must not touch the network")
	_, ok := c.Token()
	assert.False(t, ok)
}

func TestNew_MissingEndpoints(t *testing.T) {
	cases := []struct {
		name      string
		endpoints Endpoints
		field     string
	}{
		{"no auth url", Endpoints{APIBaseURL: apiURL}, "AUTH_BASE_URL"},
		{"no api url", Endpoints{AuthBaseURL: authURL}, "API_BASE_URL"},
		{"blank auth url", Endpoints{AuthBaseURL: "  ", APIBaseURL: apiURL}, "AUTH_BASE_URL"},
		{"both empty", Endpoints{}, "AUTH_BASE_URL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(Credentials{Identifier: "a@b.com", Secret: "pw"}, tc.endpoints)
			require.Error(t, err)
			assert.Nil(t, c)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestDataOperation_LogsInOnceAndReusesToken(t *testing.T) {
	f := &fakeBackend{login: func(int32) *http.Response { return jsonResponse(200, loginBody("T")) }}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.GetCurrentWorkspace(ctx)
	require.NoError(t, err)
	_, err = c.GetWorkspaces(ctx)
	require.NoError(t, err)

	assert.EqualValues(t, 1, f.logins.Load(), "single login per client lifetime")
	reqs := f.apiRequests()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, "Bearer T", r.Authorization)
		assert.Equal(t, "application/json", r.ContentType)
	}
}

func TestDataOperation_LoginUnauthorized(t *testing.T) {
	f := &fakeBackend{login: func(int32) *http.Response {
		return jsonResponse(http.StatusUnauthorized, `{"errors":[{"message":"bad credentials"}]}`)
	}}
	c := newTestClient(t, f)

	resp, err := c.GetViewer(context.Background())
	require.Error(t, err)
	assert.Nil(t, resp)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)

	assert.Empty(t, f.apiRequests(), "no data request after a failed login")
	for _, r := range f.requests {
		assert.Empty(t, r.Authorization, "no Authorization header is ever sent")
	}
}

func TestLogin_MissingAccessToken(t *testing.T) {
	f := &fakeBackend{login: func(int32) *http.Response {
		return jsonResponse(http.StatusOK, `{"data":{"passwordLogin":{}}}`)
	}}
	c := newTestClient(t, f)

	resp, err := c.Login(context.Background())
	require.Error(t, err)
	require.NotNil(t, resp, "the raw response is still returned")

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Error(), "accessToken")

	_, ok := c.Token()
	assert.False(t, ok)
}

func TestLogin_NullData(t *testing.T) {
	f := &fakeBackend{login: func(int32) *http.Response { return jsonResponse(http.StatusOK, `{"data":null}`) }}
	c := newTestClient(t, f)

	_, err := c.Login(context.Background())
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestLogin_TwiceOverwritesToken(t *testing.T) {
	f := &fakeBackend{login: func(n int32) *http.Response {
		if n == 1 {
			return jsonResponse(200, loginBody("first"))
		}
		return jsonResponse(200, loginBody("second"))
	}}
	c := newTestClient(t, f)
	ctx := context.Background()

	_, err := c.Login(ctx)
	require.NoError(t, err)
	_, err = c.Login(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.logins.Load(), "each explicit login hits the network")

	tok, ok := c.Token()
	require.True(t, ok)
	assert.Equal(t, "second", tok)

	_, err = c.GetViewer(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.logins.Load(), "cached token is reused")
	assert.Equal(t, "Bearer second", f.apiRequests()[0].Authorization)
}

func TestLogin_EscapesCredentials(t *testing.T) {
	f := &fakeBackend{login: func(int32) *http.Response { return jsonResponse(200, loginBody("T")) }}
	c, err := New(
		Credentials{Identifier: `a"b@c.com`, Secret: `p\w"}`},
		Endpoints{AuthBaseURL: authURL, APIBaseURL: apiURL},
		WithHTTPClient(&http.Client{Transport: &mockTransport{fn: f.roundTrip}}),
	)
	require.NoError(t, err)

	_, err = c.Login(context.Background())
	require.NoError(t, err)

	var body Request
	require.NoError(t, json.Unmarshal([]byte(f.requests[0].Body), &body))
	assert.Contains(t, body.Query, `email: "a\"b@c.com"`)
	assert.Contains(t, body.Query, `password: "p\\w\"}"`)
	assert.Nil(t, body.Variables)
}

func TestGetViewer_EndToEnd(t *testing.T) {
	f := &fakeBackend{
		login: func(int32) *http.Response { return jsonResponse(200, loginBody("tok123")) },
		api: func(string) *http.Response {
			return jsonResponse(200, `{"data":{"viewer":{"id":"u1","email":"a@b.com"}}}`)
		},
	}
	c := newTestClient(t, f)

	resp, err := c.GetViewer(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())

	reqs := f.apiRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer tok123", reqs[0].Authorization)
	assert.Contains(t, reqs[0].Body, "viewer")

	var data struct {
		Viewer Viewer `json:"viewer"`
	}
	_, err = Decode(resp, &data)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", data.Viewer.Email)
}

func TestDataOperation_ReturnsRawResponseOnGraphQLError(t *testing.T) {
	f := &fakeBackend{
		login: func(int32) *http.Response { return jsonResponse(200, loginBody("T")) },
		api: func(string) *http.Response {
			return jsonResponse(200, `{"data":null,"errors":[{"message":"forbidden"}]}`)
		},
	}
	c := newTestClient(t, f)

	resp, err := c.GetCurrentWorkspace(context.Background())
	require.NoError(t, err, "data operations do not interpret the envelope")

	env, err := Decode(resp, nil)
	require.NoError(t, err)
	var gqlErr *GraphQLError
	require.ErrorAs(t, env.Err(), &gqlErr)
	assert.Equal(t, "forbidden", gqlErr.Errors[0].Message)
}

func TestGetWorkspaceDraftProject_SendsVariables(t *testing.T) {
	f := &fakeBackend{login: func(int32) *http.Response { return jsonResponse(200, loginBody("T")) }}
	c := newTestClient(t, f)

	_, err := c.GetWorkspaceDraftProject(context.Background(), "ws-42")
	require.NoError(t, err)

	var body Request
	require.NoError(t, json.Unmarshal([]byte(f.apiRequests()[0].Body), &body))
	assert.Equal(t, "ws-42", body.Variables["workspaceId"])
	assert.Contains(t, body.Query, "$workspaceId")
	assert.Equal(t, strings.Count(body.Query, "{"), strings.Count(body.Query, "}"), "balanced selection set")
}

func TestConcurrentFirstUse_SingleLogin(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := &fakeBackend{login: func(n int32) *http.Response {
		if n == 1 {
			close(entered)
		}
		<-release
		return jsonResponse(200, loginBody("T"))
	}}
	c := newTestClient(t, f)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.HasAccessToWorkspace(context.Background())
			assert.NoError(t, err)
		}()
	}
	<-entered
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, f.logins.Load())
	assert.Len(t, f.apiRequests(), 8)
}

func TestTransportErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	c, err := New(
		Credentials{Identifier: "a@b.com", Secret: "pw"},
		Endpoints{AuthBaseURL: authURL, APIBaseURL: apiURL},
		WithHTTPClient(&http.Client{Transport: &mockTransport{fn: func(*http.Request) (*http.Response, error) {
			return nil, boom
		}}}),
	)
	require.NoError(t, err)

	_, err = c.GetViewer(context.Background())
	require.ErrorIs(t, err, boom)
	var authErr *AuthenticationError
	assert.False(t, errors.As(err, &authErr), "transport errors are not reclassified")
}
