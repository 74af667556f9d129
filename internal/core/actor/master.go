package actor

import (
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	adactor "github.com/worldgrean1/grean-world-sub001/internal/adapter/actor"
	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	. "github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"go.uber.org/zap"
)

type MQTTActorProvider func(*eventstream.EventStream) *adactor.MQTTActor

type ModbusActorProvider func(*eventstream.EventStream) *adactor.ModbusActor

const (
	CHILD_HEALTH_TIMEOUT = 500 * time.Millisecond
	LIST_TIMEOUT         = 2 * time.Second
)

// MasterOfPuppetsActor is the composition root: it spawns the energy system,
// one actor per inverter and the optional adapters, and routes requests.
type MasterOfPuppetsActor struct {
	config   config.Config
	behavior actor.Behavior
	stash    *Stash

	currentHealthCheck  healthCheckResult
	eventStream         *eventstream.EventStream
	energySystemActor   *actor.PID
	inverterActors      map[string]*actor.PID
	inverterIds         []string
	modbusActor         *actor.PID
	mqttActor           *actor.PID
	haDiscoveryActor    *actor.PID
	modbusActorProvider ModbusActorProvider
	mqttActorProvider   MQTTActorProvider
	logger              *zap.Logger
}

type healthCheckResult struct {
	expected  []string
	healthy   map[string]bool
	received  int
	respondTo *actor.PID
}

// NewMasterOfPuppetsActor takes nil providers for disabled adapters.
func NewMasterOfPuppetsActor(config config.Config, eventStream *eventstream.EventStream, modbusActorProvider ModbusActorProvider,
	mqttActorProvider MQTTActorProvider, logger *zap.Logger) *MasterOfPuppetsActor {
	act := &MasterOfPuppetsActor{
		config:              config,
		behavior:            actor.NewBehavior(),
		stash:               &Stash{},
		logger:              ActorLogger(domain.ACTOR_ID_MASTER, logger),
		eventStream:         eventStream,
		inverterActors:      make(map[string]*actor.PID),
		modbusActorProvider: modbusActorProvider,
		mqttActorProvider:   mqttActorProvider,
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *MasterOfPuppetsActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *MasterOfPuppetsActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("master@starting started")

		// start EnergySystem child
		energyPID, err := state.startEnergySystemActor(ctx)
		if err != nil {
			panic(err)
		}
		state.energySystemActor = energyPID

		// start one child per inverter
		for _, inv := range state.config.Inverters {
			pid, err := state.startInverterActor(ctx, inv)
			if err != nil {
				panic(err)
			}
			state.inverterActors[inv.Id] = pid
			state.inverterIds = append(state.inverterIds, inv.Id)
		}

		// start Modbus child
		if state.modbusActorProvider != nil {
			modbusActorPID, err := state.startModbusActor(ctx)
			if err != nil {
				panic(err)
			}
			state.modbusActor = modbusActorPID
		}

		// start MQTT child
		if state.mqttActorProvider != nil {
			mqttActorPID, err := state.startMQTTActor(ctx)
			if err != nil {
				panic(err)
			}
			state.mqttActor = mqttActorPID

			// start HA Discovery
			if state.config.MQTT.HADiscoveryEnable {
				haDiscPID, err := state.startHADiscoveryActor(ctx)
				if err != nil {
					panic(err)
				}
				state.haDiscoveryActor = haDiscPID
			}
		}

		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	default:
		state.logger.Debug("master@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *MasterOfPuppetsActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthRequest:
		state.logger.Debug("master@default ActorHealthRequest")
		state.currentHealthCheck.reset(state.children())
		state.currentHealthCheck.respondTo = ForRequest(msg).ReplyTo(ctx)
		for id, pid := range state.children() {
			PipeToSelfWithRecover(ctx, ctx.RequestFuture(pid, domain.ActorHealthRequest{}, CHILD_HEALTH_TIMEOUT), func(err error) any {
				return domain.ActorHealthResponse{
					Id:      id,
					Healthy: false,
				}
			})
		}

		ctx.SetReceiveTimeout(1 * time.Second)

		state.behavior.BecomeStacked(state.HealthCheckReceive)
	case domain.EnergySystemRequest:
		state.logger.Debug("master@default EnergySystemRequest", zap.String("type", fmt.Sprintf("%T", msg)))
		ctx.Forward(state.energySystemActor)
	case domain.GetEnergySystemStateRequest:
		ctx.Forward(state.energySystemActor)
	case domain.InverterRequest:
		state.logger.Debug("master@default InverterRequest", zap.String("type", fmt.Sprintf("%T", msg)), zap.String("inverter", msg.InverterId()))
		pid, ok := state.inverterActors[msg.InverterId()]
		if !ok {
			ForRequest(msg).Respond(ctx, unknownInverterResponse(msg))
			return
		}
		ctx.Forward(pid)
	case domain.ListInvertersRequest:
		state.logger.Debug("master@default ListInvertersRequest")
		state.listInverters(ctx, ForRequest(msg).ReplyTo(ctx))
	case domain.RepublishDiscoveryRequest:
		if state.haDiscoveryActor == nil {
			ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{
				ActorResponseMixIn: domain.ErrorResponse(domain.ErrDiscoveryDisabled),
			})
			return
		}
		ctx.Forward(state.haDiscoveryActor)
	case adactor.ParsedCommand:
		// redirect parsedCommand to actor
		state.logger.Debug("master@default parsedCommand", zap.Any("command", msg.Command))
		if msg.Command == nil {
			return
		}
		cmd, err := ParsedMQTTCommandToCommand(*msg.Command)
		if err != nil {
			state.logger.Warn("master@default invalid command", zap.Any("command", msg.Command), zap.Error(err))
			return
		}
		switch pcmd := cmd.(type) {
		case domain.EnergySystemRequest:
			ctx.Send(state.energySystemActor, pcmd)
		case domain.InverterRequest:
			if pid, ok := state.inverterActors[pcmd.InverterId()]; ok {
				ctx.Send(pid, pcmd)
			}
		}
	case *actor.Terminated:
		state.logger.Error("master@default child terminated", zap.String("child", msg.Who.Id))
	case *actor.Stopping, *actor.Stopped, *actor.Restarting:
	default:
		state.logger.Debug("master@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *MasterOfPuppetsActor) HealthCheckReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.ReceiveTimeout:
		// if some actor does not respond to healthCheck, assume not healthy
		ctx.CancelReceiveTimeout()
		state.currentHealthCheck.respond(ctx)
		state.behavior.UnbecomeStacked()
		state.stash.UnstashAll(ctx)
	case domain.ActorHealthResponse:
		state.logger.Debug("master@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		state.currentHealthCheck.received++
		if msg.Healthy {
			state.currentHealthCheck.healthy[msg.Id] = true
		}
		if state.currentHealthCheck.allReceived() {
			ctx.CancelReceiveTimeout()
			state.currentHealthCheck.respond(ctx)
			state.behavior.UnbecomeStacked()
			state.stash.UnstashAll(ctx)
		}
	default:
		state.logger.Debug("master@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

// children maps the health id of every child to its pid.
func (state *MasterOfPuppetsActor) children() map[string]*actor.PID {
	children := map[string]*actor.PID{
		domain.ACTOR_ID_ENERGY_SYSTEM: state.energySystemActor,
	}
	for id, pid := range state.inverterActors {
		children[InverterActorId(id)] = pid
	}
	if state.modbusActor != nil {
		children[domain.ACTOR_ID_MODBUS] = state.modbusActor
	}
	if state.mqttActor != nil {
		children[domain.ACTOR_ID_MQTT] = state.mqttActor
	}
	return children
}

// listInverters collects the snapshots off the actor's goroutine, in
// configuration order.
func (state *MasterOfPuppetsActor) listInverters(ctx actor.Context, replyTo *actor.PID) {
	if replyTo == nil {
		return
	}
	var futures []*actor.Future
	for _, id := range state.inverterIds {
		futures = append(futures, ctx.RequestFuture(state.inverterActors[id], domain.GetInverterSnapshotRequest{
			InverterRequestMixIn: domain.InverterRequestMixIn{Id: id},
		}, LIST_TIMEOUT))
	}
	NewBackgroundTask(ctx, func() (*domain.ListInvertersResponse, error) {
		resp := &domain.ListInvertersResponse{Inverters: []domain.InverterSnapshot{}}
		for _, f := range futures {
			res, err := f.Result()
			if err != nil {
				return nil, err
			}
			snapshot, ok := res.(domain.GetInverterSnapshotResponse)
			if !ok {
				return nil, fmt.Errorf("unexpected response %T", res)
			}
			resp.Inverters = append(resp.Inverters, snapshot.Snapshot)
		}
		return resp, nil
	}).Recover(func(err error) domain.ListInvertersResponse {
		return domain.ListInvertersResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
	}).WithTimeout(LIST_TIMEOUT + 500*time.Millisecond).PipeTo(replyTo)
}

func unknownInverterResponse(req domain.InverterRequest) domain.ActorResponse {
	err := fmt.Errorf("%w: %s", domain.ErrUnknownInverter, req.InverterId())
	switch req.(type) {
	case domain.GetInverterSnapshotRequest:
		return domain.GetInverterSnapshotResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
	default:
		return domain.InverterCommandResponse{ActorResponseMixIn: domain.ErrorResponse(err)}
	}
}

func restartDecider(reason interface{}) actor.Directive {
	log.Printf("handling failure for child. reason: %v", reason)
	return actor.RestartDirective
}

func (state *MasterOfPuppetsActor) startEnergySystemActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, restartDecider)

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewEnergySystemActor(&state.config, state.eventStream, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, domain.ACTOR_ID_ENERGY_SYSTEM)
}

func (state *MasterOfPuppetsActor) startInverterActor(ctx actor.Context, inv config.InverterConfig) (*actor.PID, error) {

	// fail before spawning on an invalid configuration
	if _, err := NewInverterTelemetry(inv); err != nil {
		return nil, err
	}

	supervisor := actor.NewOneForOneStrategy(3, 10*time.Second, restartDecider)

	props := actor.PropsFromProducer(func() actor.Actor {
		act, err := NewInverterActor(&state.config, inv, state.energySystemActor, state.eventStream, state.logger)
		if err != nil {
			panic(err)
		}
		return act
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(props, InverterActorId(inv.Id))
}

func (state *MasterOfPuppetsActor) startModbusActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	modbusProps := actor.PropsFromProducer(func() actor.Actor {
		return state.modbusActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(modbusProps, domain.ACTOR_ID_MODBUS)
}

func (state *MasterOfPuppetsActor) startMQTTActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewExponentialBackoffStrategy(10*time.Second, 1*time.Second)

	mqttProps := actor.PropsFromProducer(func() actor.Actor {
		return state.mqttActorProvider(state.eventStream)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(mqttProps, domain.ACTOR_ID_MQTT)
}

func (state *MasterOfPuppetsActor) startHADiscoveryActor(ctx actor.Context) (*actor.PID, error) {

	supervisor := actor.NewOneForOneStrategy(1, 10*time.Second, restartDecider)

	haDiscProps := actor.PropsFromProducer(func() actor.Actor {
		return NewHADiscoveryActor(&state.config, state.mqttActor, state.logger)
	}, actor.WithSupervisor(supervisor))
	return ctx.SpawnNamed(haDiscProps, domain.ACTOR_ID_HA_DISCOVERY)
}

func (state *healthCheckResult) reset(children map[string]*actor.PID) {
	state.expected = state.expected[:0]
	for id := range children {
		state.expected = append(state.expected, id)
	}
	slices.Sort(state.expected)
	state.healthy = make(map[string]bool)
	state.received = 0
	state.respondTo = nil
}

func (state *healthCheckResult) allReceived() bool {
	return state.received >= len(state.expected)
}

func (state *healthCheckResult) unhealthy() []string {
	var ids []string
	for _, id := range state.expected {
		if !state.healthy[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (state *healthCheckResult) respond(ctx actor.Context) {
	unhealthy := state.unhealthy()
	resp := domain.ActorHealthResponse{
		Id:      domain.ACTOR_ID_MASTER,
		Healthy: len(unhealthy) == 0,
		State:   "ok",
	}
	if !resp.Healthy {
		resp.State = "unhealthy: " + strings.Join(unhealthy, ",")
	}
	if state.respondTo != nil {
		ctx.Send(state.respondTo, resp)
	}
}
