package actor

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/core/port"
	"github.com/worldgrean1/grean-world-sub001/internal/core/service"
	. "github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const DEFAULT_OUTPUT_FREQUENCY = 50.0

// InverterActor simulates the telemetry of one inverter. While the energy
// system inverter is off it cools down, otherwise it runs the operating tick.
type InverterActor struct {
	ActorWithStates
	id           string
	name         string
	on           bool
	telemetry    domain.InverterTelemetry
	logic        port.InverterSimulationLogic
	tickInterval time.Duration

	energyActor  *actor.PID
	eventStream  *eventstream.EventStream
	subscription *eventstream.Subscription
	scheduler    *scheduler.TimerScheduler
	cancelTick   scheduler.CancelFunc

	faultGeneration  uint64
	cancelFaultClear scheduler.CancelFunc
	stateReceived    bool

	logger *zap.Logger
}

type inverterTick struct{}

type faultClear struct {
	Generation uint64
}

type inverterOffState struct{ *InverterActor }
type inverterOnState struct{ *InverterActor }

func (inverterOffState) Name() string { return "off" }
func (inverterOnState) Name() string  { return "on" }

// InverterActorId is the child name of an inverter below the master.
func InverterActorId(inverterId string) string {
	return fmt.Sprintf("%s_%s", domain.ACTOR_ID_INVERTER, inverterId)
}

// NewInverterTelemetry builds the initial telemetry of a configured inverter.
func NewInverterTelemetry(cfg config.InverterConfig) (domain.InverterTelemetry, error) {
	mode, err := domain.ParseInverterMode(cfg.Mode)
	if err != nil {
		return domain.InverterTelemetry{}, fmt.Errorf("inverter %s: %w", cfg.Id, err)
	}
	return domain.InverterTelemetry{
		Temperature:     lo.FromPtr(cfg.Temperature),
		FanSpeed:        lo.FromPtr(cfg.FanSpeed),
		LoadPercentage:  lo.FromPtr(cfg.LoadPercentage),
		BatteryLevel:    lo.FromPtr(cfg.BatteryLevel),
		OutputFrequency: DEFAULT_OUTPUT_FREQUENCY,
		Mode:            mode,
		SelectedMode:    mode.Index(),
		DisplayOption:   domain.DisplayOverview,
	}, nil
}

// NewRandomSource returns a per-inverter generator. Seeded sources are
// reproducible and still differ between inverters.
func NewRandomSource(cfg config.SimulationConfig, inverterId string) port.RandomSource {
	if !cfg.UseSeed {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	h := fnv.New64a()
	h.Write([]byte(inverterId))
	return rand.New(rand.NewPCG(cfg.Seed, h.Sum64()))
}

func NewInverterActor(cfg *config.Config, inverter config.InverterConfig, energyActor *actor.PID,
	eventStream *eventstream.EventStream, logger *zap.Logger) (*InverterActor, error) {
	telemetry, err := NewInverterTelemetry(inverter)
	if err != nil {
		return nil, err
	}
	logic := service.NewDefaultInverterSimulation(NewRandomSource(cfg.Simulation, inverter.Id))
	if cfg.Simulation.RandomFaultClearMillis > 0 {
		logic.RandomFaultClear = cfg.Simulation.RandomFaultClear()
	}
	if cfg.Simulation.BatteryFaultClearMillis > 0 {
		logic.BatteryFaultClear = cfg.Simulation.BatteryFaultClear()
	}
	logic.RandomFaultProbability = cfg.Simulation.RandomFaultProbability

	tickInterval := cfg.Simulation.TickInterval()
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return NewInverterActorWithLogic(inverter.Id, inverter.Name, telemetry, logic, tickInterval, energyActor, eventStream, logger), nil
}

func NewInverterActorWithLogic(id, name string, telemetry domain.InverterTelemetry, logic port.InverterSimulationLogic,
	tickInterval time.Duration, energyActor *actor.PID, eventStream *eventstream.EventStream, logger *zap.Logger) *InverterActor {
	act := &InverterActor{
		id:           id,
		name:         name,
		telemetry:    telemetry,
		logic:        logic,
		tickInterval: tickInterval,
		energyActor:  energyActor,
		eventStream:  eventStream,
		logger:       ActorLogger(InverterActorId(id), logger),
	}
	act.ActorWithStates = NewActorWithStates(inverterOffState{act})
	return act
}

func (s inverterOffState) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case *actor.Started:
		s.logger.Debug("inverter@off started")
		s.scheduler = scheduler.NewTimerScheduler(ctx)

		// follow the energy system
		self := ctx.Self()
		root := ctx.ActorSystem().Root
		s.subscription = s.eventStream.Subscribe(func(evt any) {
			if e, ok := evt.(domain.EnergyStateChangedEvent); ok {
				root.Send(self, e)
			}
		})
		if s.energyActor != nil {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(s.energyActor, domain.GetEnergySystemStateRequest{}, 2*time.Second), func(err error) any {
				return domain.GetEnergySystemStateResponse{
					ActorResponseMixIn: domain.ErrorResponse(err),
				}
			})
		}

		s.logic.DeriveConnections(&s.telemetry, false)
		s.restartTicks(ctx)
		s.publish()
	case inverterTick:
		s.logic.CoolDownTick(&s.telemetry)
		s.publish()
	default:
		s.receiveCommon(ctx)
	}
}

func (s inverterOnState) Receive(ctx actor.Context) {
	switch ctx.Message().(type) {
	case inverterTick:
		result := s.logic.HeatTick(&s.telemetry)
		if result.FaultRaised {
			s.logger.Debug("inverter@on fault raised", zap.String("cause", string(result.FaultCause)), zap.Duration("clearAfter", result.FaultClearAfter))
			s.scheduleFaultClear(ctx, result.FaultClearAfter)
		}
		s.publish()
	default:
		s.receiveCommon(ctx)
	}
}

func (state *InverterActor) receiveCommon(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.EnergyStateChangedEvent:
		state.stateReceived = true
		state.setOn(ctx, msg.State.InverterActive)
	case domain.GetEnergySystemStateResponse:
		if msg.HasResponseError() {
			state.logger.Error("inverter@"+state.StateName()+" could not get energy system state", zap.Error(msg.GetResponseError()))
			return
		}
		// an event may have overtaken the response
		if !state.stateReceived {
			state.setOn(ctx, msg.State.InverterActive)
		}
	case faultClear:
		if msg.Generation != state.faultGeneration {
			return
		}
		state.logger.Debug("inverter@" + state.StateName() + " fault cleared")
		state.cancelFaultClear = nil
		state.telemetry.FaultCondition = false
		state.publish()
	case domain.GetInverterSnapshotRequest:
		ForRequest(msg).Respond(ctx, domain.GetInverterSnapshotResponse{
			Snapshot: state.Snapshot(),
		})
	case domain.CycleModeRequest:
		state.logic.CycleMode(&state.telemetry, state.on)
		state.logger.Debug("inverter@"+state.StateName()+" mode", zap.String("mode", string(state.telemetry.Mode)))
		state.respondCommand(ctx, msg)
	case domain.CycleDisplayOptionRequest:
		state.logic.CycleDisplayOption(&state.telemetry)
		state.respondCommand(ctx, msg)
	case domain.SetLoadPercentageRequest:
		state.logic.SetLoadPercentage(&state.telemetry, msg.Percentage)
		state.respondCommand(ctx, msg)
	case domain.ActorHealthRequest:
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      InverterActorId(state.id),
			Healthy: true,
			State:   state.StateName(),
		})
	case *actor.Stopping:
		state.stop()
	case *actor.Restarting:
		state.stop()
	case *actor.Stopped:
	default:
		state.logger.Debug("inverter@"+state.StateName()+" unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *InverterActor) Snapshot() domain.InverterSnapshot {
	return domain.InverterSnapshot{
		Id:        state.id,
		Name:      state.name,
		On:        state.on,
		Telemetry: state.telemetry,
	}
}

// setOn re-derives the connections right away and swaps the periodic process.
func (state *InverterActor) setOn(ctx actor.Context, on bool) {
	if on == state.on {
		return
	}
	state.on = on
	state.logic.DeriveConnections(&state.telemetry, on)
	if on {
		state.Become(inverterOnState{state})
	} else {
		state.Become(inverterOffState{state})
	}
	state.logger.Debug("inverter@" + state.StateName() + " switched")
	state.restartTicks(ctx)
	state.publish()
}

func (state *InverterActor) restartTicks(ctx actor.Context) {
	if state.cancelTick != nil {
		state.cancelTick()
	}
	state.cancelTick = state.scheduler.SendRepeatedly(state.tickInterval, state.tickInterval, ctx.Self(), inverterTick{})
}

// scheduleFaultClear replaces any pending clear with a new one.
func (state *InverterActor) scheduleFaultClear(ctx actor.Context, after time.Duration) {
	if state.cancelFaultClear != nil {
		state.cancelFaultClear()
	}
	state.faultGeneration++
	state.cancelFaultClear = state.scheduler.SendOnce(after, ctx.Self(), faultClear{Generation: state.faultGeneration})
}

func (state *InverterActor) respondCommand(ctx actor.Context, req domain.ActorRequest) {
	state.publish()
	ForRequest(req).Respond(ctx, domain.InverterCommandResponse{
		Snapshot: state.Snapshot(),
	})
}

func (state *InverterActor) publish() {
	state.eventStream.Publish(domain.InverterTelemetryEvent{Snapshot: state.Snapshot()})
}

func (state *InverterActor) stop() {
	if state.cancelTick != nil {
		state.cancelTick()
		state.cancelTick = nil
	}
	if state.cancelFaultClear != nil {
		state.cancelFaultClear()
		state.cancelFaultClear = nil
	}
	if state.subscription != nil {
		state.eventStream.Unsubscribe(state.subscription)
		state.subscription = nil
	}
}
