package domain

const (
	ACTOR_ID_MASTER        = "master"
	ACTOR_ID_ENERGY_SYSTEM = "energy_system"
	ACTOR_ID_INVERTER      = "inverter"
	ACTOR_ID_MQTT          = "mqtt"
	ACTOR_ID_MODBUS        = "modbus"
	ACTOR_ID_HA_DISCOVERY  = "hadiscovery"
)

type GetEnergySystemStateRequest struct {
	ActorRequestMixIn
}

type GetEnergySystemStateResponse struct {
	ActorResponseMixIn
	State EnergySystemState
}

type ListInvertersRequest struct {
	ActorRequestMixIn
}

type ListInvertersResponse struct {
	ActorResponseMixIn
	Inverters []InverterSnapshot
}

type GetInverterSnapshotRequest struct {
	InverterRequestMixIn
}

type GetInverterSnapshotResponse struct {
	ActorResponseMixIn
	Snapshot InverterSnapshot
}

type PublishDiscoveryRequest struct {
	ActorRequestMixIn
	Sensors      []GenericSensor
	Switches     []GenericSwitch
	InputNumbers []GenericInputNumber
	Buttons      []GenericButton
}

type PublishDiscoveryResponse struct {
	ActorResponseMixIn
}

type RepublishDiscoveryRequest struct {
	ActorRequestMixIn
}

type ActorHealthRequest struct {
	ActorRequestMixIn
}

type ActorHealthResponse struct {
	ActorResponseMixIn
	Id      string
	Healthy bool
	State   string
}
