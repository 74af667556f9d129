package actor

import (
	"fmt"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/config"
	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/core/events"
	"github.com/worldgrean1/grean-world-sub001/internal/util/actorutil"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/scheduler"
	"github.com/reugn/go-quartz/quartz"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const HADISCOVERY_RETRY = 2 * time.Second

// HADiscoveryActor publishes the Home Assistant discovery configuration once
// the MQTT actor is healthy and republishes it on a cron schedule.
type HADiscoveryActor struct {
	config    *config.Config
	behavior  actor.Behavior
	stash     *actorutil.Stash
	mqttActor *actor.PID
	scheduler *scheduler.TimerScheduler
	trigger   *quartz.CronTrigger
	cancel    scheduler.CancelFunc
	published int
	acked     int

	logger *zap.Logger
}

type republishTick struct{}

func NewHADiscoveryActor(config *config.Config, mqttActor *actor.PID, logger *zap.Logger) *HADiscoveryActor {
	act := &HADiscoveryActor{
		config:    config,
		mqttActor: mqttActor,
		behavior:  actor.NewBehavior(),
		stash:     &actorutil.Stash{},
		logger:    actorutil.ActorLogger(domain.ACTOR_ID_HA_DISCOVERY, logger),
	}
	act.behavior.Become(act.StartingReceive)
	return act
}

func (state *HADiscoveryActor) Receive(context actor.Context) {
	state.behavior.Receive(context)
}

func (state *HADiscoveryActor) StartingReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		state.logger.Debug("hadiscovery@starting started")
		state.scheduler = scheduler.NewTimerScheduler(ctx)
		if state.config.MQTT.HADiscoveryCron != "" {
			trigger, err := quartz.NewCronTrigger(state.config.MQTT.HADiscoveryCron)
			if err != nil {
				state.logger.Error("hadiscovery@starting invalid cron expression, republish disabled", zap.Error(err))
			} else {
				state.trigger = trigger
			}
		}
		state.requestMQTTHealth(ctx)
		state.behavior.Become(state.WaitingHealthyReceive)
	case *actor.Restarting:
	default:
		state.logger.Debug("hadiscovery@starting stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) WaitingHealthyReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case domain.ActorHealthResponse:
		state.logger.Debug("hadiscovery@healthcheck ActorHealthResponse", zap.String("sender", msg.Id), zap.Bool("healthy", msg.Healthy))
		if !msg.Healthy {
			state.cancel = state.scheduler.SendOnce(HADISCOVERY_RETRY, ctx.Self(), republishTick{})
			return
		}
		state.publish(ctx)
		state.behavior.Become(state.DefaultReceive)
		state.stash.UnstashAll(ctx)
	case republishTick:
		state.requestMQTTHealth(ctx)
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("hadiscovery@healthcheck stash", zap.String("type", fmt.Sprintf("%T", msg)))
		state.stash.Stash(ctx, msg)
	}
}

func (state *HADiscoveryActor) DefaultReceive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case republishTick:
		state.logger.Debug("hadiscovery@default republish")
		state.publish(ctx)
	case domain.RepublishDiscoveryRequest:
		state.logger.Debug("hadiscovery@default RepublishDiscoveryRequest")
		state.publish(ctx)
		actorutil.ForRequest(msg).Respond(ctx, domain.PublishDiscoveryResponse{})
	case domain.PublishDiscoveryResponse:
		if msg.HasResponseError() {
			state.logger.Warn("hadiscovery@default publish failed", zap.Error(msg.GetResponseError()))
			return
		}
		state.acked++
	case domain.ActorHealthRequest:
		actorutil.ForRequest(msg).Respond(ctx, domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_HA_DISCOVERY,
			Healthy: true,
			State:   fmt.Sprintf("published %d, acked %d", state.published, state.acked),
		})
	case *actor.Stopping:
		state.stop()
	default:
		state.logger.Debug("hadiscovery@default unhandled", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (state *HADiscoveryActor) requestMQTTHealth(ctx actor.Context) {
	actorutil.PipeToSelfWithRecover(ctx, ctx.RequestFuture(state.mqttActor, domain.ActorHealthRequest{}, 2*time.Second), func(err error) any {
		return domain.ActorHealthResponse{
			Id:      domain.ACTOR_ID_MQTT,
			Healthy: false,
		}
	})
}

func (state *HADiscoveryActor) publish(ctx actor.Context) {
	req := DiscoveryRequest(state.config)
	req.ReplyToRef = domain.RefOf(ctx.Self())
	ctx.Send(state.mqttActor, req)
	state.published++
	state.scheduleNext(ctx)
}

// scheduleNext arms a timer for the next cron fire time.
func (state *HADiscoveryActor) scheduleNext(ctx actor.Context) {
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
	if state.trigger == nil {
		return
	}
	now := time.Now()
	next, err := state.trigger.NextFireTime(now.UnixNano())
	if err != nil {
		state.logger.Error("hadiscovery@schedule no next fire time", zap.Error(err))
		return
	}
	after := time.Duration(next - now.UnixNano())
	state.logger.Debug("hadiscovery@schedule next republish", zap.Duration("after", after))
	state.cancel = state.scheduler.SendOnce(after, ctx.Self(), republishTick{})
}

func (state *HADiscoveryActor) stop() {
	if state.cancel != nil {
		state.cancel()
		state.cancel = nil
	}
}

// DiscoveryRequest lists every entity exposed for the configured system.
func DiscoveryRequest(cfg *config.Config) domain.PublishDiscoveryRequest {
	var sensors []domain.GenericSensor
	var switches []domain.GenericSwitch
	var inputNumbers []domain.GenericInputNumber
	var buttons []domain.GenericButton

	bridgeDevice := events.BridgeDevice(cfg.MQTT.BaseTopic)
	sensors = append(sensors, events.BridgeSensors(bridgeDevice)...)

	energyDevice := events.EnergySystemDevice(cfg.MQTT.BaseTopic)
	energyDevice.ViaDevice = bridgeDevice.Id
	energySensors := events.EnergySystemSensors(energyDevice)
	for i := range energySensors {
		if i > 0 {
			energySensors[i].Device = events.IdDevice(energyDevice)
		}
		sensors = append(sensors, energySensors[i])
	}
	for _, sw := range events.EnergySystemSwitches(energyDevice) {
		sw.Device = events.IdDevice(energyDevice)
		switches = append(switches, sw)
	}

	for _, inv := range cfg.Inverters {
		inverterDevice := events.InverterDevice(inv.Id, inv.Name)
		inverterDevice.ViaDevice = bridgeDevice.Id
		inverterSensors := events.InverterSensors(inverterDevice, inv.Id)
		for i := range inverterSensors {
			if i > 0 {
				inverterSensors[i].Device = events.IdDevice(inverterDevice)
			}
			sensors = append(sensors, inverterSensors[i])
		}
		for _, in := range events.InverterInputNumbers(events.IdDevice(inverterDevice), inv.Id) {
			in.InitialValue = lo.FromPtr(inv.LoadPercentage)
			inputNumbers = append(inputNumbers, in)
		}
		buttons = append(buttons, events.InverterButtons(events.IdDevice(inverterDevice), inv.Id)...)
	}

	return domain.PublishDiscoveryRequest{
		Sensors:      sensors,
		Switches:     switches,
		InputNumbers: inputNumbers,
		Buttons:      buttons,
	}
}
