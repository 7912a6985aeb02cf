package server

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	mrand "math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vancomm/minefield/internal/auth"
	"github.com/vancomm/minefield/internal/config"
	"github.com/vancomm/minefield/internal/mines"
	"github.com/vancomm/minefield/internal/store"
)

var testKey *rsa.PrivateKey

func TestMain(m *testing.M) {
	Log.SetLevel(logrus.DebugLevel)
	Log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	var err error
	if testKey, err = rsa.GenerateKey(rand.Reader, 2048); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

// tickingClock advances by a second on every call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	cfg := config.Default()
	cookies := auth.NewCookies(
		cfg.Cookies, auth.NewJWT(testKey, &testKey.PublicKey, time.Hour), false,
	)
	s := New(cfg, store.NewMemory(), cookies,
		WithRand(mrand.New(mrand.NewPCG(1, 2))),
		WithClock(tickingClock()),
	)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := ts.Client()
	client.Jar = jar
	return &testClient{t, ts, client}
}

func (c *testClient) do(method, path string, body string, v any) int {
	c.t.Helper()
	req, err := http.NewRequest(method, c.server.URL+path, strings.NewReader(body))
	require.NoError(c.t, err)
	if method == http.MethodPost && body != "" && !strings.HasPrefix(path, "/v1/game") {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func (c *testClient) newGame(query string) SessionJSON {
	c.t.Helper()
	var session SessionJSON
	require.Equal(c.t, http.StatusOK, c.do(http.MethodPost, "/v1/game?"+query, "", &session))
	return session
}

func (c *testClient) play(id, op string, x, y int) (int, SessionJSON) {
	c.t.Helper()
	var session SessionJSON
	path := fmt.Sprintf("/v1/game/%s/%s?x=%d&y=%d", id, op, x, y)
	code := c.do(http.MethodPost, path, "", &session)
	return code, session
}

func countCells(grid mines.Grid, state mines.CellState) (n int) {
	for _, s := range grid {
		if s == state {
			n++
		}
	}
	return
}

func TestNewGameDefaults(t *testing.T) {
	c := newTestClient(t)
	session := c.newGame("")

	assert.Equal(t, 9, session.Width)
	assert.Equal(t, 9, session.Height)
	assert.Equal(t, 10, session.MineCount)
	assert.Equal(t, 10, session.Remaining)
	assert.Equal(t, mines.InProgress, session.State)
	assert.Equal(t, 81, countCells(session.Grid, mines.Unknown))
	assert.Empty(t, session.Changed)
	assert.Nil(t, session.EndedAt)

	_, err := uuid.Parse(session.ID)
	assert.NoError(t, err)

	var got SessionJSON
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/game/"+session.ID, "", &got))
	assert.Equal(t, session, got)
}

func TestNewGameInvalid(t *testing.T) {
	c := newTestClient(t)
	tests := []string{
		"width=5&height=5&mine_count=25",
		"width=0",
		"mine_count=-1",
		"width=100&height=100&mine_count=10",
		"width=4294967296&height=4294967296",
		"width=abc",
	}
	for _, query := range tests {
		t.Run(query, func(t *testing.T) {
			var payload ErrorJSON
			code := c.do(http.MethodPost, "/v1/game?"+query, "", &payload)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, payload.Error)
		})
	}

	c.newGame("width=5&height=5&mine_count=24")
}

func TestGetGameMissing(t *testing.T) {
	c := newTestClient(t)

	var payload ErrorJSON
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/v1/game/"+uuid.NewString(), "", &payload))
	assert.Equal(t, "not found", payload.Error)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/v1/game/42", "", nil))
	code, _ := c.play(uuid.NewString(), "open", 0, 0)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestFirstOpenIsSafe(t *testing.T) {
	c := newTestClient(t)
	session := c.newGame("width=3&height=3&mine_count=8")

	code, session := c.play(session.ID, "open", 1, 1)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, mines.Won, session.State)
	require.Len(t, session.Changed, 1)
	assert.Equal(t, mines.CellChange{X: 1, Y: 1, Visibility: mines.Open, Count: 8}, session.Changed[0])
	assert.Equal(t, mines.CellState(8), session.Grid[4])
	require.NotNil(t, session.EndedAt)
	endedAt := *session.EndedAt

	code, session = c.play(session.ID, "open", 0, 0)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, mines.Won, session.State, "finished games ignore moves")
	assert.Empty(t, session.Changed)
	assert.Equal(t, endedAt, *session.EndedAt)
}

func TestOpenInvalidPosition(t *testing.T) {
	c := newTestClient(t)
	session := c.newGame("")

	var payload ErrorJSON
	code := c.do(http.MethodPost, "/v1/game/"+session.ID+"/open?x=9&y=0", "", &payload)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, payload.Error, "point out of bounds")

	code = c.do(http.MethodPost, "/v1/game/"+session.ID+"/open?x=1", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	var got SessionJSON
	c.do(http.MethodGet, "/v1/game/"+session.ID, "", &got)
	assert.Equal(t, 81, countCells(got.Grid, mines.Unknown))
}

func TestFlag(t *testing.T) {
	c := newTestClient(t)
	session := c.newGame("")

	code, session := c.play(session.ID, "flag", 2, 0)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 9, session.Remaining)
	assert.Equal(t, mines.Flag, session.Grid[2])
	assert.Equal(t, []mines.CellChange{{X: 2, Y: 0, Visibility: mines.Flagged}}, session.Changed)

	_, session = c.play(session.ID, "open", 2, 0)
	assert.Equal(t, mines.Flag, session.Grid[2], "flagged cells do not open")

	_, session = c.play(session.ID, "flag", 2, 0)
	assert.Equal(t, 10, session.Remaining)
	assert.Equal(t, mines.Unknown, session.Grid[2])
}

func TestChord(t *testing.T) {
	c := newTestClient(t)
	session := c.newGame("width=3&height=3&mine_count=7")

	_, session = c.play(session.ID, "open", 1, 1)
	require.Equal(t, mines.InProgress, session.State)
	assert.Equal(t, mines.CellState(7), session.Grid[4])

	code, session := c.play(session.ID, "chord", 1, 1)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, session.Changed, "chord needs as many flags as mines")
	assert.Equal(t, mines.InProgress, session.State)
}

func TestForfeit(t *testing.T) {
	c := newTestClient(t)
	session := c.newGame("")

	var got SessionJSON
	code := c.do(http.MethodPost, "/v1/game/"+session.ID+"/forfeit", "", &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, mines.Lost, got.State)
	assert.Zero(t, countCells(got.Grid, mines.Unknown))
	assert.Equal(t, 10, countCells(got.Grid, mines.Mine))
	assert.Len(t, got.Changed, 81)
	assert.NotNil(t, got.EndedAt)
}

func TestBatch(t *testing.T) {
	c := newTestClient(t)
	session := c.newGame("width=3&height=3&mine_count=8")
	path := "/v1/game/" + session.ID + "/batch"

	var payload ErrorJSON
	code := c.do(http.MethodPost, path, "f 0 0\no 1 1\nx 1 2\n", &payload)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, payload.Line)
	assert.Equal(t, 2, *payload.Line)

	payload = ErrorJSON{}
	code = c.do(http.MethodPost, path, "\nf 0 0\n\nx 1 2", &payload)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, payload.Line)
	assert.Equal(t, 3, *payload.Line, "blank lines are counted")

	payload = ErrorJSON{}
	code = c.do(http.MethodPost, path, "f 0 0\no 3 3", &payload)
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, payload.Line)
	assert.Equal(t, 1, *payload.Line)

	var got SessionJSON
	c.do(http.MethodGet, "/v1/game/"+session.ID, "", &got)
	assert.Equal(t, 8, got.Remaining, "failed batches are discarded")

	code = c.do(http.MethodPost, path, "f 0 0\no 1 1\nf 2 2\n", &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, mines.Won, got.State)
	assert.Equal(t, 7, got.Remaining, "commands after the game ends are skipped")
	assert.Len(t, got.Changed, 2)
}

func TestAuthFlow(t *testing.T) {
	c := newTestClient(t)

	var status Status
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/status", "", &status))
	assert.False(t, status.LoggedIn)

	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/v1/register", "username=alice", nil))
	long := url.Values{"username": {"alice"}, "password": {strings.Repeat("p", 73)}}
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/v1/register", long.Encode(), nil))

	form := url.Values{"username": {"alice"}, "password": {"hunter2"}}.Encode()
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/v1/register", form, &status))
	assert.True(t, status.LoggedIn)
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/v1/register", form, nil))

	status = Status{}
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/status", "", &status))
	require.True(t, status.LoggedIn)
	assert.Equal(t, "alice", status.Player.Username)

	session := c.newGame("width=3&height=3&mine_count=8")
	_, session = c.play(session.ID, "open", 0, 2)
	require.Equal(t, mines.Won, session.State)
	anonymous := newTestClient(t)

	var records []store.Record
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/myrecords", "", &records))
	require.Len(t, records, 1)
	assert.Equal(t, session.ID, records[0].SessionID)
	assert.Equal(t, "alice", *records[0].Username)
	assert.Positive(t, records[0].Playtime)

	records = nil
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/records?seed=3:3:8", "", &records))
	assert.Len(t, records, 1)
	records = nil
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/records?seed=9:9:10&username=alice", "", &records))
	assert.Empty(t, records)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodGet, "/v1/records?seed=9x9", "", nil))
	assert.Equal(t, http.StatusUnauthorized, anonymous.do(http.MethodGet, "/v1/myrecords", "", nil))

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/v1/logout", "", &status))
	status = Status{LoggedIn: true}
	c.do(http.MethodGet, "/v1/status", "", &status)
	assert.False(t, status.LoggedIn)
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/v1/myrecords", "", nil))

	wrong := url.Values{"username": {"alice"}, "password": {"hunter3"}}.Encode()
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodPost, "/v1/login", wrong, nil))
	unknown := url.Values{"username": {"bob"}, "password": {"hunter2"}}.Encode()
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodPost, "/v1/login", unknown, nil))
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/v1/login", form, &status))
	assert.True(t, status.LoggedIn)
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/v1/myrecords", "", nil))
}

func TestCorsPreflight(t *testing.T) {
	c := newTestClient(t)
	req, err := http.NewRequest(http.MethodOptions, c.server.URL+"/v1/game", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://minefield.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := c.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://minefield.example", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestWebSocket(t *testing.T) {
	c := newTestClient(t)
	session := c.newGame("width=3&height=3&mine_count=8")
	wsURL := "ws" + strings.TrimPrefix(c.server.URL, "http") + "/v1/game/"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+uuid.NewString()+"/connect", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+session.ID+"/connect", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("f 0 0")))
	var got SessionJSON
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, 7, got.Remaining)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("o 9 9")))
	var payload ErrorJSON
	require.NoError(t, conn.ReadJSON(&payload))
	assert.Contains(t, payload.Error, "point out of bounds")
	require.NotNil(t, payload.Line)
	assert.Zero(t, *payload.Line)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("g\no 1 1")))
	got = SessionJSON{}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, mines.Won, got.State)
	assert.NotNil(t, got.EndedAt)

	require.NoError(t, conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	))
}
