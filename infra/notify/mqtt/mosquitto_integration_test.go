//go:build integration

package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/rescue/core/events"
	"github.com/kilianp07/rescue/core/model"
)

func startMosquitto(ctx context.Context, t *testing.T) string {
	t.Helper()
	conf := "listener 1883\nallow_anonymous true\npersistence false\n"
	path := filepath.Join(t.TempDir(), "mosquitto.conf")
	require.NoError(t, os.WriteFile(path, []byte(conf), 0644))

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{HostFilePath: path, ContainerFilePath: "/mosquitto/config/mosquitto.conf", FileMode: 0644},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("container start: %v", err)
	}
	t.Cleanup(func() { _ = cont.Terminate(context.Background()) })
	host, err := cont.Host(ctx)
	require.NoError(t, err)
	port, err := cont.MappedPort(ctx, "1883")
	require.NoError(t, err)
	return fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func TestPublisherAgainstMosquitto(t *testing.T) {
	ctx := context.Background()
	broker := startMosquitto(ctx, t)

	got := make(chan paho.Message, 4)
	sub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("observer"))
	tok := sub.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	defer sub.Disconnect(100)
	tok = sub.Subscribe("rescue/emergency/status/+", 1, func(_ paho.Client, m paho.Message) { got <- m })
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())

	p, err := NewPublisher(Config{Broker: broker, TopicPrefix: "rescue", QoS: 1})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	ev := model.Event{Kind: model.EventStatusChange, RequestID: "r1", Status: model.RequestOnScene, Timestamp: time.Now().UTC()}
	require.NoError(t, p.Publish(ctx, events.RequestStatusTopic("r1"), ev))

	select {
	case m := <-got:
		assert.Equal(t, "rescue/emergency/status/r1", m.Topic())
		var out model.Event
		require.NoError(t, json.Unmarshal(m.Payload(), &out))
		assert.Equal(t, model.RequestOnScene, out.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}
}
