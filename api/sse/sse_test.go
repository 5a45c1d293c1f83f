package sse_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kasuganosora/npcsensor/api/sse"
	"github.com/kasuganosora/npcsensor/cache"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"github.com/kasuganosora/npcsensor/game/world"
	"github.com/kasuganosora/npcsensor/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T) (*httptest.Server, cache.PubSub, uuid.UUID) {
	t.Helper()
	_, ps := testutil.SetupTestCache(t)

	rooms := world.NewManager(nil, nil)
	room := world.NewRoom(1, nil, world.DefaultRoomConfig(), 1, nil)
	g, err := room.AddGuard("g1", sensor.Pose{Forward: r3.Vec{X: 1}}, sensor.DefaultSettings(), nil)
	require.NoError(t, err)
	rooms.Add(room)

	r := gin.New()
	r.GET("/sse/sensors/:id", sse.NewHandler(ps, rooms, nil).ServeSensor)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, ps, g.Sensor().ID()
}

// readEvent returns the event name and data of the next frame.
func readEvent(t *testing.T, sc *bufio.Scanner) (string, string) {
	t.Helper()
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && event != "":
			return event, data
		}
	}
	require.NoError(t, sc.Err())
	t.Fatal("stream ended")
	return "", ""
}

func TestServeSensor_StreamsPublishedEvents(t *testing.T) {
	srv, ps, id := newServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse/sensors/"+id.String(), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	event, data := readEvent(t, sc)
	assert.Equal(t, "connected", event)
	assert.Contains(t, data, id.String())

	require.NoError(t, ps.Publish(ctx, cache.EventsChannel(id), `{"kind":"target_spotted"}`))
	event, data = readEvent(t, sc)
	assert.Equal(t, "sensor", event)
	assert.JSONEq(t, `{"kind":"target_spotted"}`, data)
}

func TestServeSensor_UnknownSensor(t *testing.T) {
	srv, _, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/sse/sensors/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sse/sensors/bogus")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
