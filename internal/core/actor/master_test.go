package actor

import (
	"testing"
	"time"

	adactor "github.com/worldgrean1/grean-world-sub001/internal/adapter/actor"
	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/core/events"
	"github.com/worldgrean1/grean-world-sub001/internal/mqtt"
	"github.com/worldgrean1/grean-world-sub001/internal/util"
	"github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func spawnMaster(t *testing.T, cfg config.Config, withModbus bool) (*actor.ActorSystem, *actor.PID) {
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(logCfg.Build())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	es := &eventstream.EventStream{}

	var modbusProvider ModbusActorProvider
	if withModbus {
		modbusProvider = func(es *eventstream.EventStream) *adactor.ModbusActor {
			return adactor.NewModbusActor(&cfg, es, logger)
		}
	}
	mqttProvider := func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewTestMQTTActor(&cfg, es, logger)
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewMasterOfPuppetsActor(cfg, es, modbusProvider, mqttProvider, logger)
	})
	pid, err := as.Root.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	require.NoError(t, err)
	return as, pid
}

func TestMasterActorHealth(t *testing.T) {

	cfg := util.LoadTestConfig()
	cfg.Modbus.Port = 15503
	cfg.MQTT.HADiscoveryEnable = true

	as, pid := spawnMaster(t, cfg, true)
	defer as.Shutdown()

	healthResp := request[domain.ActorHealthResponse](t, as, pid, domain.ActorHealthRequest{})
	assert.True(t, healthResp.Healthy, "healthy is true")
	assert.Equal(t, domain.ACTOR_ID_MASTER, healthResp.Id)
	assert.Equal(t, "ok", healthResp.State)

	res, err := as.Root.RequestFuture(pid, domain.RepublishDiscoveryRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.IsType(t, domain.PublishDiscoveryResponse{}, res)
}

func TestMasterActorRouting(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()
	cfg.Inverters = append(cfg.Inverters, config.InverterConfig{Id: "inv2", Name: "Second", Mode: "battery", Temperature: lo.ToPtr(35.0), LoadPercentage: lo.ToPtr(10.0), BatteryLevel: lo.ToPtr(90.0)})

	as, pid := spawnMaster(t, cfg, false)
	defer as.Shutdown()

	list := request[domain.ListInvertersResponse](t, as, pid, domain.ListInvertersRequest{})
	require.False(t, list.HasResponseError())
	require.Len(t, list.Inverters, 2)
	assert.Equal("inv1", list.Inverters[0].Id)
	assert.Equal("inv2", list.Inverters[1].Id)
	assert.Equal(domain.InverterModeBattery, list.Inverters[1].Telemetry.Mode)

	unknown := request[domain.InverterCommandResponse](t, as, pid, domain.CycleModeRequest{
		InverterRequestMixIn: domain.InverterRequestMixIn{Id: "nope"},
	})
	assert.ErrorIs(unknown.GetResponseError(), domain.ErrUnknownInverter)

	snapshot := request[domain.GetInverterSnapshotResponse](t, as, pid, domain.GetInverterSnapshotRequest{
		InverterRequestMixIn: domain.InverterRequestMixIn{Id: "nope"},
	})
	assert.ErrorIs(snapshot.GetResponseError(), domain.ErrUnknownInverter)

	cmd := request[domain.InverterCommandResponse](t, as, pid, domain.SetLoadPercentageRequest{
		InverterRequestMixIn: domain.InverterRequestMixIn{Id: "inv2"},
		Percentage:           -5,
	})
	assert.Equal(0.0, cmd.Snapshot.Telemetry.LoadPercentage)

	state := request[domain.GetEnergySystemStateResponse](t, as, pid, domain.GetEnergySystemStateRequest{})
	assert.Equal(domain.PhaseIdle, state.State.Phase())

	// discovery is disabled, the request is answered instead of timing out
	republish := request[domain.PublishDiscoveryResponse](t, as, pid, domain.RepublishDiscoveryRequest{})
	assert.ErrorIs(republish.GetResponseError(), domain.ErrDiscoveryDisabled)

	// commands coming from MQTT are routed without a reply
	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: events.SWITCH_ID_ENERGY_SYSTEM,
		Command:  mqtt.COMMAND_SWITCH,
		Payload:  mqtt.MQTT_PAYLOAD_ON,
	}})
	as.Root.Send(pid, adactor.ParsedCommand{Command: &mqtt.ParsedMQTTCommand{
		DeviceId: events.InverterSensorId("inv1", events.BUTTON_SUFFIX_CYCLE_MODE),
		Command:  mqtt.COMMAND_BUTTON,
		Payload:  "PRESS",
	}})
	time.Sleep(100 * time.Millisecond)

	state = request[domain.GetEnergySystemStateResponse](t, as, pid, domain.GetEnergySystemStateRequest{})
	assert.True(state.State.Booting)

	snapshot = request[domain.GetInverterSnapshotResponse](t, as, pid, domain.GetInverterSnapshotRequest{
		InverterRequestMixIn: domain.InverterRequestMixIn{Id: "inv1"},
	})
	assert.Equal(domain.InverterModeBattery, snapshot.Snapshot.Telemetry.Mode)

	started := request[domain.StartEnergySystemResponse](t, as, pid, domain.StartEnergySystemRequest{})
	assert.False(started.Started)
	assert.Equal(domain.START_REJECTED_BOOTING, started.Reason)

	// the sequence reaches the inverters through the event stream
	time.Sleep(500 * time.Millisecond)
	list = request[domain.ListInvertersResponse](t, as, pid, domain.ListInvertersRequest{})
	require.False(t, list.HasResponseError())
	for _, inv := range list.Inverters {
		assert.True(inv.On, inv.Id)
	}
}
