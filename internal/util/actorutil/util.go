package actorutil

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/core/events"
	"github.com/worldgrean1/grean-world-sub001/internal/mqtt"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/lmittmann/tint"
	"go.uber.org/zap"
)

func PipeToSelfWithRecover(ctx actor.Context, future *actor.Future, mapFn func(error) any) {
	ctx.ReenterAfter(future, func(msg any, err error) {
		if err != nil {
			ctx.Send(ctx.Self(), mapFn(err))
			return
		}
		ctx.Send(ctx.Self(), msg)
	})
}

func NewActorSystemWithZapLogger(logger *zap.Logger) *actor.ActorSystem {
	stdOutLogger := zap.NewStdLog(logger)

	var slogLevel slog.Level = slog.LevelInfo

	switch logger.Level() {
	case zap.DebugLevel:
		slogLevel = slog.LevelDebug
	case zap.InfoLevel:
		slogLevel = slog.LevelInfo
	case zap.WarnLevel:
		slogLevel = slog.LevelWarn
	case zap.ErrorLevel, zap.DPanicLevel, zap.PanicLevel, zap.FatalLevel:
		slogLevel = slog.LevelError
	}

	return actor.NewActorSystem(actor.WithLoggerFactory(func(system *actor.ActorSystem) *slog.Logger {
		return slog.New(tint.NewHandler(stdOutLogger.Writer(), &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.DateTime,
		}))
	}))
}

func ActorLogger(actorName string, logger *zap.Logger) *zap.Logger {
	return logger.With(zap.String("actor", actorName))
}

// ParsedMQTTCommandToCommand maps an MQTT command onto an energy system or
// inverter request. Unknown entities yield a nil request and no error.
func ParsedMQTTCommandToCommand(cmd mqtt.ParsedMQTTCommand) (domain.ActorRequest, error) {
	switch cmd.Command {
	case mqtt.COMMAND_SWITCH:
		on, err := parseSwitchPayload(cmd.Payload)
		if err != nil {
			return nil, err
		}
		switch cmd.DeviceId {
		case events.SWITCH_ID_ENERGY_SYSTEM:
			if on {
				return domain.StartEnergySystemRequest{}, nil
			}
			return domain.DeactivateFullSystemRequest{}, nil
		case events.SWITCH_ID_INVERTER:
			return domain.SetInverterActiveRequest{Active: on}, nil
		case events.SWITCH_ID_POWER_SWITCH:
			return domain.SetSwitchActiveRequest{Active: on}, nil
		case events.SWITCH_ID_ANIMATIONS_PAUSED:
			return domain.SetAnimationsPausedRequest{Paused: on}, nil
		}
	case mqtt.COMMAND_NUMBER:
		if inverterId, ok := strings.CutSuffix(cmd.DeviceId, "_"+events.INPUT_NUMBER_SUFFIX_LOAD); ok {
			value, err := strconv.ParseFloat(cmd.Payload, 64)
			if err != nil {
				return nil, err
			}
			return domain.SetLoadPercentageRequest{
				InverterRequestMixIn: domain.InverterRequestMixIn{Id: inverterId},
				Percentage:           value,
			}, nil
		}
	case mqtt.COMMAND_BUTTON:
		if inverterId, ok := strings.CutSuffix(cmd.DeviceId, "_"+events.BUTTON_SUFFIX_CYCLE_MODE); ok {
			return domain.CycleModeRequest{
				InverterRequestMixIn: domain.InverterRequestMixIn{Id: inverterId},
			}, nil
		}
		if inverterId, ok := strings.CutSuffix(cmd.DeviceId, "_"+events.BUTTON_SUFFIX_CYCLE_DISPLAY); ok {
			return domain.CycleDisplayOptionRequest{
				InverterRequestMixIn: domain.InverterRequestMixIn{Id: inverterId},
			}, nil
		}
	}
	return nil, nil
}

func parseSwitchPayload(payload string) (bool, error) {
	switch strings.ToLower(payload) {
	case mqtt.MQTT_PAYLOAD_ON:
		return true, nil
	case mqtt.MQTT_PAYLOAD_OFF:
		return false, nil
	default:
		return false, fmt.Errorf("invalid switch payload %q", payload)
	}
}
