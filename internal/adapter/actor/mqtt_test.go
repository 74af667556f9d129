package actor

import (
	"strings"
	"testing"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/util"
	"github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func publishedMessages(t *testing.T, context *actor.RootContext, pid *actor.PID) []rawMessage {
	result, err := context.RequestFuture(pid, publishedRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	return result.(publishedResponse).Messages
}

func published(t *testing.T, context *actor.RootContext, pid *actor.PID) map[string]rawMessage {
	byTopic := make(map[string]rawMessage)
	for _, m := range publishedMessages(t, context, pid) {
		byTopic[m.topic] = m
	}
	return byTopic
}

func TestMQTTActor(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)

	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	msg := domain.ActorHealthRequest{}
	result, err := context.RequestFuture(pid, msg, 2*time.Second).Result()
	require.NoError(t, err)
	resp, ok := result.(domain.ActorHealthResponse)
	assert.True(t, ok)
	assert.True(t, resp.Healthy)

	es.Publish(domain.EnergyStateChangedEvent{
		State: domain.EnergySystemState{
			InverterActive:  true,
			PowerFlowActive: true,
		},
	})
	es.Publish(domain.InverterTelemetryEvent{
		Snapshot: domain.InverterSnapshot{
			Id: "inv1",
			On: true,
			Telemetry: domain.InverterTelemetry{
				Temperature:    41.26,
				LoadPercentage: 40,
				FaultCondition: true,
				Mode:           domain.InverterModePV,
			},
		},
	})

	time.Sleep(200 * time.Millisecond)

	messages := published(t, context, pid)

	assert := assert.New(t)
	assert.Equal("on", messages["grean_test/binary_sensor/energy_power_flow/state"].message)
	assert.Equal("on", messages["grean_test/switch/inverter/state"].message)
	assert.True(messages["grean_test/switch/inverter/state"].retain, "switch states are retained")
	assert.Equal("off", messages["grean_test/switch/power_switch/state"].message)
	assert.Equal("41.3", messages["grean_test/sensor/inv1_temperature/state"].message)
	assert.Equal("on", messages["grean_test/binary_sensor/inv1_fault/state"].message)
	assert.Equal("40", messages["grean_test/number/inv1_load/state"].message)

	context.Stop(pid)

	as.Shutdown()
}

func TestMQTTActorPublishDiscovery(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	req := domain.PublishDiscoveryRequest{
		Switches: []domain.GenericSwitch{{
			Device: domain.Device{Id: "dev1"},
			Id:     "inverter",
			Name:   "Inverter",
		}},
		Buttons: []domain.GenericButton{{
			Device: domain.Device{Id: "dev1"},
			Id:     "inv1_cycle_mode",
			Name:   "Next mode",
		}},
	}
	result, err := context.RequestFuture(pid, req, 2*time.Second).Result()
	require.NoError(t, err)
	assert.False(t, result.(domain.PublishDiscoveryResponse).HasResponseError())

	messages := published(t, context, pid)
	sw, ok := messages["homeassistant/switch/dev1/inverter/config"]
	require.True(t, ok)
	assert.True(t, sw.retain)
	assert.True(t, strings.Contains(sw.message, `"command_topic":"grean_test/switch/inverter/command"`))

	button, ok := messages["homeassistant/button/dev1/inv1_cycle_mode/config"]
	require.True(t, ok)
	assert.True(t, strings.Contains(button.message, `"payload_press":"PRESS"`))

	context.Stop(pid)

	as.Shutdown()
}

func TestMQTTActorPublishesEveryEventOfABurst(t *testing.T) {

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewTestMQTTActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	// wait for the subscription
	_, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)

	const burst = 20
	for i := 1; i <= burst; i++ {
		es.Publish(domain.InverterTelemetryEvent{
			Snapshot: domain.InverterSnapshot{
				Id:        "inv1",
				On:        true,
				Telemetry: domain.InverterTelemetry{Temperature: float64(i)},
			},
		})
	}

	const topic = "grean_test/sensor/inv1_temperature/state"
	var values []string
	require.Eventually(t, func() bool {
		values = values[:0]
		for _, m := range publishedMessages(t, context, pid) {
			if m.topic == topic {
				values = append(values, m.message)
			}
		}
		return len(values) == burst
	}, 2*time.Second, 50*time.Millisecond)

	assert.Equal(t, "1.0", values[0])
	assert.Equal(t, "20.0", values[burst-1], "published in order")
}
