package mqtt

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_ON      = "on"
	MQTT_PAYLOAD_OFF     = "off"
	MQTT_PAYLOAD_PRESS   = "PRESS"

	COMMAND_SWITCH = "switch"
	COMMAND_NUMBER = "number"
	COMMAND_BUTTON = "button"
)

var ErrInvalidCommand = errors.New("invalid command")

func OptsFromConfig(cfg *config.Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("grean_%s", uuid.NewString()[:8]))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.SetAutoReconnect(false)
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = NewTopics(cfg.MQTT.BaseTopic, cfg.MQTT.HADiscoveryTopic).BridgeStateTopic()
	opts.WillQos = 0

	return opts
}

type ParsedMQTTCommand struct {
	DeviceId string
	Command  string
	Payload  string
}

// commandActions maps each command entity to the last topic level it accepts.
var commandActions = map[string]string{
	COMMAND_SWITCH: "command",
	COMMAND_NUMBER: "set",
	COMMAND_BUTTON: "press",
}

// Topics is the topic layout below a base topic.
type Topics struct {
	base          string
	discovery     string
	commandRegexp *regexp.Regexp
}

func NewTopics(baseTopic, discoveryTopic string) Topics {
	if discoveryTopic == "" {
		discoveryTopic = "homeassistant"
	}
	return Topics{
		base:          baseTopic,
		discovery:     discoveryTopic,
		commandRegexp: commandExtractor(baseTopic),
	}
}

func (t Topics) BridgeStateTopic() string {
	return fmt.Sprintf("%s/bridge/state", t.base)
}

func (t Topics) SensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/sensor/%s/state", t.base, sensorId)
}

func (t Topics) BinarySensorStateTopic(sensorId string) string {
	return fmt.Sprintf("%s/binary_sensor/%s/state", t.base, sensorId)
}

func (t Topics) SwitchStateTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/state", t.base, switchId)
}

func (t Topics) SwitchCommandTopic(switchId string) string {
	return fmt.Sprintf("%s/switch/%s/command", t.base, switchId)
}

func (t Topics) InputNumberStateTopic(id string) string {
	return fmt.Sprintf("%s/number/%s/state", t.base, id)
}

func (t Topics) InputNumberCommandTopic(id string) string {
	return fmt.Sprintf("%s/number/%s/set", t.base, id)
}

func (t Topics) ButtonCommandTopic(id string) string {
	return fmt.Sprintf("%s/button/%s/press", t.base, id)
}

// CommandTopicFilters lists the subscriptions that receive every command.
func (t Topics) CommandTopicFilters() []string {
	return []string{
		t.SwitchCommandTopic("+"),
		t.InputNumberCommandTopic("+"),
		t.ButtonCommandTopic("+"),
	}
}

// ParseCommand extracts a command from a topic below the base topic.
// Number payloads must parse as floats.
func (t Topics) ParseCommand(topic string, payload []byte) (*ParsedMQTTCommand, error) {
	matches := t.commandRegexp.FindStringSubmatch(topic)
	if len(matches) != 4 {
		return nil, ErrInvalidCommand
	}
	command, id, action := matches[1], matches[2], matches[3]
	if commandActions[command] != action {
		return nil, fmt.Errorf("%w: %s does not accept %s", ErrInvalidCommand, command, action)
	}
	if command == COMMAND_NUMBER {
		if _, err := strconv.ParseFloat(string(payload), 64); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	}
	return &ParsedMQTTCommand{
		DeviceId: id,
		Command:  command,
		Payload:  string(payload),
	}, nil
}

func commandExtractor(baseTopic string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^%s/(switch|number|button)/([a-zA-Z0-9_\\-]+)/(command|set|press)$", regexp.QuoteMeta(baseTopic)))
}

func CreateMQTTClient(cfg *config.Config, opts *mqtt.ClientOptions, onConnectHandler func(client mqtt.Client),
	onConnectionLostHandler func(mqtt.Client, error)) *MQTTClient {
	if onConnectHandler != nil {
		opts.OnConnect = onConnectHandler
	}
	if onConnectionLostHandler != nil {
		opts.OnConnectionLost = onConnectionLostHandler
	}
	return &MQTTClient{
		Topics: NewTopics(cfg.MQTT.BaseTopic, cfg.MQTT.HADiscoveryTopic),
		client: mqtt.NewClient(opts),
	}
}

type MQTTClient struct {
	Topics
	client mqtt.Client
}

func (c *MQTTClient) ParseMQTTCommand(msg mqtt.Message) (*ParsedMQTTCommand, error) {
	return c.ParseCommand(msg.Topic(), msg.Payload())
}

func (c *MQTTClient) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Publish(topic, qos, retain, payload), "publish", continuation, timeout)
}

func (c *MQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Subscribe(topic, qos, handler), "subscribe", continuation, timeout)
}

func (c *MQTTClient) SubscribeToCommandTopics(handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	filters := make(map[string]byte)
	for _, f := range c.CommandTopicFilters() {
		filters[f] = 1
	}
	awaitToken(c.client.SubscribeMultiple(filters, handler), "subscribe", continuation, timeout)
}

func (c *MQTTClient) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Unsubscribe(topic), "unsubscribe", continuation, timeout)
}

func (c *MQTTClient) Connect(continuation func(error), timeout time.Duration) {
	awaitToken(c.client.Connect(), "connect", continuation, timeout)
}

func (c *MQTTClient) IsConnected() bool {
	return c.client.IsConnected()
}

func (c *MQTTClient) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}

// awaitToken waits for the token off the caller's goroutine and hands the
// outcome to continuation.
func awaitToken(token mqtt.Token, op string, continuation func(error), timeout time.Duration) {
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(fmt.Errorf("MQTT %s timed out", op))
			return
		}
		if err := token.Error(); err != nil {
			continuation(fmt.Errorf("MQTT %s: %w", op, err))
			return
		}
		continuation(nil)
	}()
}
