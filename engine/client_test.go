// engine/client_test.go
package engine_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowgate/api/engine"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	m.Run()
}

func newEngineServer(t *testing.T, lines []string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-ndjson", r.Header.Get("Accept"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["stream"])

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}))
}

func drain(t *testing.T, stream engine.EventStream) []model.StreamEvent {
	t.Helper()
	var events []model.StreamEvent
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			return events
		}
		assert.NoError(t, err)
		events = append(events, ev)
	}
}

func TestOpenStream_DecodesFramedOutput(t *testing.T) {
	server := newEngineServer(t, []string{
		`{"event":"token","data":"hel"}`,
		``,
		`{"event":"token","data":"lo"}`,
		`{"event":"metadata","data":"{\"source\":\"kb\"}"}`,
		`{"event":"end"}`,
	}, http.StatusOK)
	defer server.Close()

	client := engine.NewHTTPClient(server.URL, 5*time.Second)
	stream, err := client.OpenStream(context.Background(), "flow-1", "hi", engine.SessionContext{UserID: "u1"})
	assert.NoError(t, err)
	defer stream.Close()

	events := drain(t, stream)

	assert.Len(t, events, 4)
	assert.Equal(t, model.EventToken, events[0].Kind)
	assert.Equal(t, "hel", events[0].Data)
	assert.Equal(t, model.EventMetadata, events[2].Kind)
	assert.Equal(t, model.EventEnd, events[3].Kind)
	assert.Equal(t, 0, stream.Malformed())
}

func TestOpenStream_MalformedLineBecomesToken(t *testing.T) {
	server := newEngineServer(t, []string{
		`{"event":"token","data":"ok"}`,
		`this is not json`,
		`{"data":"frame with no kind"}`,
		`{"event":"end"}`,
	}, http.StatusOK)
	defer server.Close()

	client := engine.NewHTTPClient(server.URL, 5*time.Second)
	stream, err := client.OpenStream(context.Background(), "flow-1", "hi", engine.SessionContext{UserID: "u1"})
	assert.NoError(t, err)
	defer stream.Close()

	events := drain(t, stream)

	assert.Len(t, events, 4)
	assert.Equal(t, model.EventToken, events[1].Kind)
	assert.Equal(t, "this is not json", events[1].Data)
	assert.Equal(t, model.EventToken, events[2].Kind)
	assert.Equal(t, 2, stream.Malformed())
}

func TestOpenStream_NonOKStatus(t *testing.T) {
	server := newEngineServer(t, nil, http.StatusServiceUnavailable)
	defer server.Close()

	client := engine.NewHTTPClient(server.URL, 5*time.Second)
	_, err := client.OpenStream(context.Background(), "flow-1", "hi", engine.SessionContext{UserID: "u1"})
	assert.Error(t, err)
}
