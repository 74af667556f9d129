package actor

import (
	"fmt"

	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/core/port"
	"github.com/worldgrean1/grean-world-sub001/internal/core/service"
	. "github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/asynkron/protoactor-go/scheduler"
	"go.uber.org/zap"
)

// EnergySystemActor owns the energy system store and runs the activation
// sequence on its own timers.
type EnergySystemActor struct {
	ActorWithStates
	logic       port.EnergySequenceLogic
	eventStream *eventstream.EventStream
	scheduler   *scheduler.TimerScheduler

	// generation identifies the running activation sequence
	generation uint64
	pending    []scheduler.CancelFunc

	logger *zap.Logger
}

type bootStageTick struct {
	Stage      domain.BootStage
	Generation uint64
}

type energyIdleState struct{ *EnergySystemActor }
type energyBootingState struct{ *EnergySystemActor }
type energyActiveState struct{ *EnergySystemActor }

func (energyIdleState) Name() string    { return "idle" }
func (energyBootingState) Name() string { return "booting" }
func (energyActiveState) Name() string  { return "active" }

func NewEnergySystemActor(cfg *config.Config, eventStream *eventstream.EventStream, logger *zap.Logger) *EnergySystemActor {
	logger = ActorLogger(domain.ACTOR_ID_ENERGY_SYSTEM, logger)
	logic := service.NewDefaultEnergySequence(logger)
	if cfg.EnergySystem.ActivateAfterMillis > 0 {
		logic.ActivateAfter = cfg.EnergySystem.ActivateAfter()
		logic.PowerFlowAfter = cfg.EnergySystem.PowerFlowAfter()
		logic.EnableSwitchAfter = cfg.EnergySystem.EnableSwitchAfter()
	}
	return NewEnergySystemActorWithLogic(logic, eventStream, logger)
}

func NewEnergySystemActorWithLogic(logic port.EnergySequenceLogic, eventStream *eventstream.EventStream, logger *zap.Logger) *EnergySystemActor {
	act := &EnergySystemActor{
		logic:       logic,
		eventStream: eventStream,
		logger:      logger,
	}
	act.ActorWithStates = NewActorWithStates(energyIdleState{act})
	return act
}

func (s energyIdleState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		s.logger.Debug("energy_system@idle started")
		s.scheduler = scheduler.NewTimerScheduler(ctx)
		s.publish()
	case domain.StartEnergySystemRequest:
		s.logger.Debug("energy_system@idle StartEnergySystemRequest")
		s.start(ctx)
		ForRequest(msg).Respond(ctx, domain.StartEnergySystemResponse{
			Started: true,
			State:   s.logic.State(),
		})
	default:
		s.receiveCommon(ctx)
	}
}

func (s energyBootingState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.StartEnergySystemRequest:
		s.logger.Debug("energy_system@booting StartEnergySystemRequest rejected")
		ForRequest(msg).Respond(ctx, domain.StartEnergySystemResponse{
			Reason: domain.START_REJECTED_BOOTING,
			State:  s.logic.State(),
		})
	case domain.SetInverterActiveRequest:
		// the sequence keeps running, the activate stage turns the inverter on
		s.logger.Debug("energy_system@booting SetInverterActiveRequest", zap.Bool("active", msg.Active))
		s.respondCommand(ctx, msg, s.logic.SetInverterActive(msg.Active))
	default:
		s.receiveCommon(ctx)
	}
}

func (s energyActiveState) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.StartEnergySystemRequest:
		s.logger.Debug("energy_system@active StartEnergySystemRequest rejected")
		ForRequest(msg).Respond(ctx, domain.StartEnergySystemResponse{
			Reason: domain.START_REJECTED_ACTIVE,
			State:  s.logic.State(),
		})
	case domain.SetInverterActiveRequest:
		s.logger.Debug("energy_system@active SetInverterActiveRequest", zap.Bool("active", msg.Active))
		if !msg.Active {
			s.cancelSequence()
		}
		s.respondCommand(ctx, msg, s.logic.SetInverterActive(msg.Active))
	default:
		s.receiveCommon(ctx)
	}
}

func (state *EnergySystemActor) receiveCommon(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case bootStageTick:
		if msg.Generation != state.generation {
			state.logger.Debug("energy_system@stage dropped stale stage", zap.Stringer("stage", msg.Stage))
			return
		}
		state.logger.Debug("energy_system@stage apply", zap.Stringer("stage", msg.Stage))
		if state.logic.ApplyStage(msg.Stage) {
			state.changed()
		}
	case domain.GetEnergySystemStateRequest:
		ForRequest(msg).Respond(ctx, domain.GetEnergySystemStateResponse{
			State: state.logic.State(),
		})
	case domain.ActorHealthRequest:
		ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_ENERGY_SYSTEM,
			Healthy: true,
			State:   state.StateName(),
		})
	case domain.SetInverterActiveRequest:
		state.respondCommand(ctx, msg, state.logic.SetInverterActive(msg.Active))
	case domain.SetSwitchActiveRequest:
		state.respondCommand(ctx, msg, state.logic.SetSwitchActive(msg.Active))
	case domain.SetSwitchEnabledRequest:
		state.respondCommand(ctx, msg, state.logic.SetSwitchEnabled(msg.Enabled))
	case domain.SetPowerFlowActiveRequest:
		state.respondCommand(ctx, msg, state.logic.SetPowerFlowActive(msg.Active))
	case domain.SetShowHeroSectionRequest:
		state.respondCommand(ctx, msg, state.logic.SetShowHeroSection(msg.Show))
	case domain.SetShowTagSectionRequest:
		state.respondCommand(ctx, msg, state.logic.SetShowTagSection(msg.Show))
	case domain.ToggleAnimationsRequest:
		state.respondCommand(ctx, msg, state.logic.ToggleAnimations())
	case domain.SetAnimationsPausedRequest:
		applied := false
		if state.logic.State().AnimationsPaused != msg.Paused {
			applied = state.logic.ToggleAnimations()
		}
		state.respondCommand(ctx, msg, applied)
	case domain.DeactivateFullSystemRequest:
		state.logger.Debug("energy_system@" + state.StateName() + " DeactivateFullSystemRequest")
		state.cancelSequence()
		state.respondCommand(ctx, msg, state.logic.DeactivateFullSystem())
	case *actor.Stopping:
		state.cancelSequence()
	case *actor.Stopped, *actor.Restarting:
	default:
		state.logger.Debug("energy_system@"+state.StateName()+" unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

// start applies the boot stage right away and schedules the others.
func (state *EnergySystemActor) start(ctx actor.Context) {
	state.cancelSequence()
	for _, stage := range state.logic.Stages() {
		tick := bootStageTick{Stage: stage.Stage, Generation: state.generation}
		if stage.After <= 0 {
			state.logic.ApplyStage(stage.Stage)
			continue
		}
		state.pending = append(state.pending, state.scheduler.SendOnce(stage.After, ctx.Self(), tick))
	}
	state.changed()
}

// cancelSequence stops the timers of a running sequence; stages that were
// already queued are dropped by their generation.
func (state *EnergySystemActor) cancelSequence() {
	for _, cancel := range state.pending {
		cancel()
	}
	state.pending = nil
	state.generation++
}

func (state *EnergySystemActor) respondCommand(ctx actor.Context, req domain.ActorRequest, applied bool) {
	if applied {
		state.changed()
	}
	ForRequest(req).Respond(ctx, domain.EnergySystemCommandResponse{
		Applied: applied,
		State:   state.logic.State(),
	})
}

// changed moves to the state matching the store and notifies subscribers.
func (state *EnergySystemActor) changed() {
	st := state.logic.State()
	switch {
	case st.Booting:
		if state.StateName() != "booting" {
			state.Become(energyBootingState{state})
		}
	case st.InverterActive:
		if state.StateName() != "active" {
			state.Become(energyActiveState{state})
		}
	default:
		if state.StateName() != "idle" {
			state.Become(energyIdleState{state})
		}
	}
	state.publish()
}

func (state *EnergySystemActor) publish() {
	state.eventStream.Publish(domain.EnergyStateChangedEvent{State: state.logic.State()})
}
