package actorutil

import (
	"testing"

	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"
	"github.com/worldgrean1/grean-world-sub001/internal/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsedMQTTCommandToCommand(t *testing.T) {

	tests := map[string]struct {
		cmd  mqtt.ParsedMQTTCommand
		want domain.ActorRequest
	}{
		"system on": {
			cmd:  mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_SWITCH, DeviceId: "energy_system", Payload: "on"},
			want: domain.StartEnergySystemRequest{},
		},
		"system off": {
			cmd:  mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_SWITCH, DeviceId: "energy_system", Payload: "OFF"},
			want: domain.DeactivateFullSystemRequest{},
		},
		"inverter": {
			cmd:  mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_SWITCH, DeviceId: "inverter", Payload: "on"},
			want: domain.SetInverterActiveRequest{Active: true},
		},
		"power switch": {
			cmd:  mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_SWITCH, DeviceId: "power_switch", Payload: "off"},
			want: domain.SetSwitchActiveRequest{Active: false},
		},
		"animations": {
			cmd:  mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_SWITCH, DeviceId: "animations_paused", Payload: "on"},
			want: domain.SetAnimationsPausedRequest{Paused: true},
		},
		"load": {
			cmd: mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_NUMBER, DeviceId: "roof_2_load", Payload: "75"},
			want: domain.SetLoadPercentageRequest{
				InverterRequestMixIn: domain.InverterRequestMixIn{Id: "roof_2"},
				Percentage:           75,
			},
		},
		"cycle mode": {
			cmd:  mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_BUTTON, DeviceId: "inv1_cycle_mode", Payload: mqtt.MQTT_PAYLOAD_PRESS},
			want: domain.CycleModeRequest{InverterRequestMixIn: domain.InverterRequestMixIn{Id: "inv1"}},
		},
		"cycle display": {
			cmd:  mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_BUTTON, DeviceId: "inv1_cycle_display", Payload: mqtt.MQTT_PAYLOAD_PRESS},
			want: domain.CycleDisplayOptionRequest{InverterRequestMixIn: domain.InverterRequestMixIn{Id: "inv1"}},
		},
		"unknown": {
			cmd:  mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_SWITCH, DeviceId: "kettle", Payload: "on"},
			want: nil,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ParsedMQTTCommandToCommand(tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsedMQTTCommandToCommandInvalidPayload(t *testing.T) {

	_, err := ParsedMQTTCommandToCommand(mqtt.ParsedMQTTCommand{Command: mqtt.COMMAND_SWITCH, DeviceId: "inverter", Payload: "maybe"})
	assert.Error(t, err)
}
