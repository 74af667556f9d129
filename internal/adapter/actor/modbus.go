package actor

import (
	"fmt"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/core/events"
	"github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"
	"github.com/worldgrean1/grean-world-sub001/pkg/sunspec_modbus"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

const (
	INVERTER_RATED_POWER_WATT = 5000
	MODBUS_CLIENT_TIMEOUT     = 30 * time.Second
)

// ModbusActor serves the telemetry of every inverter as a SunSpec register
// image over Modbus TCP, one unit id per inverter.
type ModbusActor struct {
	config       *config.Config
	behavior     actor.Behavior
	stash        *actorutil.Stash
	server       *sunspec_modbus.RegisterServer
	units        map[string]uint8
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	logger       *zap.Logger
}

type modbusServerStarted struct{}

type modbusServerFailed struct {
	Error error
}

func NewModbusActor(config *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *ModbusActor {
	act := &ModbusActor{
		config:      config,
		behavior:    actor.NewBehavior(),
		stash:       &actorutil.Stash{},
		units:       UnitIds(config.Inverters),
		eventStream: eventStream,
		logger:      actorutil.ActorLogger(domain.ACTOR_ID_MODBUS, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

// UnitIds maps inverter ids to Modbus unit ids; unset ids follow the
// configuration order starting at 1.
func UnitIds(inverters []config.InverterConfig) map[string]uint8 {
	units := make(map[string]uint8)
	for i, inv := range inverters {
		if inv.ModbusUnitId > 0 {
			units[inv.Id] = inv.ModbusUnitId
		} else {
			units[inv.Id] = uint8(i + 1)
		}
	}
	return units
}

func (state *ModbusActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *ModbusActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("modbus@starting started")
		server, err := sunspec_modbus.NewRegisterServer(state.config.Modbus.Host, state.config.Modbus.Port,
			state.config.Modbus.MaxClients, MODBUS_CLIENT_TIMEOUT)
		if err != nil {
			panic(err)
		}
		state.server = server

		self := ctx.Self()
		root := ctx.ActorSystem().Root
		go actorutil.NewBackgroundTaskErr(ctx, server.Start).
			WithTimeout(5 * time.Second).
			OnError(func(err error) {
				root.Send(self, modbusServerFailed{Error: err})
			}).
			OnSuccess(func(struct{}) {
				root.Send(self, modbusServerStarted{})
			}).Run()
	case modbusServerStarted:
		state.logger.Info("modbus@starting listening", zap.String("host", state.config.Modbus.Host), zap.Uint("port", state.config.Modbus.Port))
		state.subscribeEvents(ctx)
		if ctx.Parent() != nil {
			actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(ctx.Parent(), domain.ListInvertersRequest{}, 3*time.Second), func(err error) any {
				return domain.ListInvertersResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
			})
		}
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case modbusServerFailed:
		state.logger.Error("modbus@starting could not start server", zap.Error(msg.Error))
		panic(msg.Error)
	case *actor.Restarting:
		state.stop()
	default:
		state.logger.Debug("modbus@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *ModbusActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("modbus@default ActorHealthRequest")
		actorutil.ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MODBUS,
			Healthy: true,
			State:   fmt.Sprintf("serving %d units", state.server.Units()),
		})
	case domain.InverterTelemetryEvent:
		state.update(msg.Snapshot)
	case domain.ListInvertersResponse:
		if msg.HasResponseError() {
			state.logger.Warn("modbus@default no inverter snapshot", zap.Error(msg.GetResponseError()))
			return
		}
		for _, snapshot := range msg.Inverters {
			state.update(snapshot)
		}
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	case *actor.Stopped:
	default:
		state.logger.Debug("modbus@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *ModbusActor) subscribeEvents(ctx actor.Context) {
	self := ctx.Self()
	root := ctx.ActorSystem().Root
	state.subscription = state.eventStream.Subscribe(func(evt any) {
		if e, ok := evt.(domain.InverterTelemetryEvent); ok {
			root.Send(self, e)
		}
	})
}

func (state *ModbusActor) update(snapshot domain.InverterSnapshot) {
	unitId, ok := state.units[snapshot.Id]
	if !ok {
		return
	}
	state.server.Update(unitId, sunspec_modbus.EncodeInverterImage(inverterInfo(snapshot, unitId), inverterValues(snapshot)))
}

func (state *ModbusActor) stop() {
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
	if state.server != nil {
		if err := state.server.Stop(); err != nil {
			state.logger.Warn("modbus@stop", zap.Error(err))
		}
		state.server = nil
	}
}

func inverterInfo(snapshot domain.InverterSnapshot, unitId uint8) sunspec_modbus.InverterInfo {
	return sunspec_modbus.InverterInfo{
		Manufacturer:      events.DEVICE_MANUFACTURER,
		Model:             events.DEVICE_MODEL_SIMULATED_INVERTER,
		Version:           versioninfo.Short(),
		Serial:            snapshot.Id,
		MaxRatedPowerWatt: INVERTER_RATED_POWER_WATT,
		UnitId:            unitId,
	}
}

func inverterValues(snapshot domain.InverterSnapshot) sunspec_modbus.InverterValues {
	t := snapshot.Telemetry
	var acPower float64
	if snapshot.On {
		acPower = t.LoadPercentage / 100 * INVERTER_RATED_POWER_WATT
	}
	return sunspec_modbus.InverterValues{
		On:                 snapshot.On,
		Fault:              t.FaultCondition,
		CabinetTemperature: t.Temperature,
		OutputFrequency:    t.OutputFrequency,
		ACPowerWatt:        acPower,
		EnergyWh:           uint32(t.TotalEnergyGenerated * 1000),
		BatteryConnected:   t.BatteryConnected,
		BatteryCharging:    t.BatteryCharging,
		StateOfCharge:      t.BatteryLevel,
	}
}
