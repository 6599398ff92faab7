package eventcenter

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	dbmodel "github.com/grimm00/networking-learning-sub003/server/database/model"
)

func TestCreateEvent(t *testing.T) {
	machine := &dbmodel.Machine{ID: 7, Address: "lab1"}
	details := map[string]interface{}{"port": 8888}

	event := CreateEvent(dbmodel.EvWarning, "cannot reach {machine}", machine, details)
	require.EqualValues(t, dbmodel.EvWarning, event.Level)
	require.EqualValues(t, "cannot reach lab1", event.Text)
	require.NotNil(t, event.MachineID)
	require.EqualValues(t, 7, *event.MachineID)
	require.EqualValues(t, details, event.Details)
}

func TestEventLevelString(t *testing.T) {
	require.EqualValues(t, "info", dbmodel.EvInfo.String())
	require.EqualValues(t, "warning", dbmodel.EvWarning.String())
	require.EqualValues(t, "error", dbmodel.EvError.String())
}

// Tests that an event flows from AddInfoEvent to a websocket
// subscriber. The database is nil so events are only dispatched.
func TestEventStream(t *testing.T) {
	ec := NewEventCenter(nil)
	defer ec.Shutdown()

	server := httptest.NewServer(ec)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Subscription registration races with the dispatch below, so give
	// the broker a moment to register the connection.
	require.Eventually(t, func() bool {
		broker := ec.(*eventCenter).broker
		broker.mu.Lock()
		defer broker.mu.Unlock()
		return len(broker.subscribers) == 1
	}, time.Second, 10*time.Millisecond)

	ec.AddInfoEvent("machine {machine} registered", &dbmodel.Machine{ID: 1, Address: "lab1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var received streamedEvent
	require.NoError(t, conn.ReadJSON(&received))
	require.EqualValues(t, "info", received.Level)
	require.EqualValues(t, "machine lab1 registered", received.Text)
}
