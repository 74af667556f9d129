package actor

import (
	"testing"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/util"
	"github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"
	"github.com/worldgrean1/grean-world-sub001/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUnitIds(t *testing.T) {

	units := UnitIds([]config.InverterConfig{
		{Id: "a"},
		{Id: "b", ModbusUnitId: 7},
		{Id: "c"},
	})

	assert.Equal(t, map[string]uint8{"a": 1, "b": 7, "c": 3}, units)
}

func TestModbusActorServesTelemetry(t *testing.T) {

	assert := assert.New(t)

	cfg := util.LoadTestConfig()

	logger := zap.Must(zap.NewDevelopment())

	as := actorutil.NewActorSystemWithZapLogger(logger)
	context := as.Root

	es := eventstream.EventStream{}

	props := actor.PropsFromProducer(func() actor.Actor { return NewModbusActor(&cfg, &es, logger) })
	pid := context.Spawn(props)

	// health is stashed until the server listens
	result, err := context.RequestFuture(pid, domain.ActorHealthRequest{}, 5*time.Second).Result()
	require.NoError(t, err)
	assert.True(result.(domain.ActorHealthResponse).Healthy)

	es.Publish(domain.InverterTelemetryEvent{
		Snapshot: domain.InverterSnapshot{
			Id: "inv1",
			On: true,
			Telemetry: domain.InverterTelemetry{
				Connections:          domain.Connections{SolarConnected: true, BatteryConnected: true},
				Temperature:          52.4,
				LoadPercentage:       40,
				BatteryLevel:         61,
				BatteryCharging:      true,
				TotalEnergyGenerated: 1.25,
				OutputFrequency:      50,
				Mode:                 domain.InverterModePV,
			},
		},
	})
	// not configured, ignored
	es.Publish(domain.InverterTelemetryEvent{Snapshot: domain.InverterSnapshot{Id: "other"}})

	time.Sleep(200 * time.Millisecond)

	reader, err := sunspec_modbus.CreateInverterReader(cfg.Modbus.Host, cfg.Modbus.Port, 1, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, reader.Open())
	defer reader.Close()

	info, err := reader.GetInfo()
	require.NoError(t, err)
	assert.Equal("inv1", info.Serial)

	state, err := reader.GetState()
	require.NoError(t, err)
	assert.InDelta(52.4, state.CabinetTemperature, 0.001)
	assert.InDelta(2000, state.ACPowerWatt, 0.001)
	assert.Equal(uint32(1250), state.EnergyWh)
	assert.Equal(sunspec_modbus.InverterStatusMPPTStr, state.OperatingStateStr)

	storage, err := reader.GetStorageState()
	require.NoError(t, err)
	assert.InDelta(61, storage.StateOfCharge, 0.001)
	assert.Equal(sunspec_modbus.StorageChargeStatusChargingStr, storage.ChargeStatusStr)

	result, err = context.RequestFuture(pid, domain.ActorHealthRequest{}, 2*time.Second).Result()
	require.NoError(t, err)
	assert.Equal("serving 1 units", result.(domain.ActorHealthResponse).State)

	context.Stop(pid)

	as.Shutdown()
}
