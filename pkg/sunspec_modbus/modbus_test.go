package sunspec_modbus

import (
	"testing"
	"time"

	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	TEST_HOST = "127.0.0.1"
	TEST_PORT = 15602
)

func testInfo() InverterInfo {
	return InverterInfo{
		Manufacturer:      "Grean World",
		Model:             "Simulated hybrid inverter",
		Version:           "1.0.0",
		Serial:            "inv1",
		MaxRatedPowerWatt: 5000,
		UnitId:            1,
	}
}

func testValues() InverterValues {
	return InverterValues{
		On:                 true,
		CabinetTemperature: 47.3,
		OutputFrequency:    50.02,
		ACPowerWatt:        2000,
		EnergyWh:           123456,
		BatteryConnected:   true,
		BatteryCharging:    true,
		StateOfCharge:      64.5,
	}
}

func TestEncodeInverterImage(t *testing.T) {

	assert := assert.New(t)

	regs := EncodeInverterImage(testInfo(), testValues())

	assert.Len(regs, IMAGE_SIZE)
	assert.Equal(uint16('S')<<8|uint16('u'), regs[0])
	assert.Equal(uint16('n')<<8|uint16('S'), regs[1])
	assert.Equal(uint16(SUNSPEC_WK_COMMON), regs[2])
	assert.Equal(uint16(SUNSPEC_LEN_COMMON), regs[3])
	assert.Equal(uint16(SUNSPEC_WK_END), regs[IMAGE_SIZE-2])

	inv := int(inverterAddr - SUNSPEC_BASE_ADDR)
	assert.Equal(uint16(SUNSPEC_WK_INVERTER), regs[inv])
	assert.Equal(uint16(5002), regs[inv+inverterHz])
	assert.Equal(uint16(473), regs[inv+inverterTmpCab])
	assert.Equal(uint16(InverterStatusMPPT), regs[inv+inverterSt])
	assert.Equal(uint16(1), regs[inv+inverterWH])
	assert.Equal(uint16(123456-65536), regs[inv+inverterWH+1])
}

func TestOperatingAndChargeStatus(t *testing.T) {

	assert := assert.New(t)

	v := testValues()
	assert.Equal(uint16(InverterStatusMPPT), operatingState(v))
	v.Fault = true
	assert.Equal(uint16(InverterStatusFault), operatingState(v))
	v.On, v.Fault = false, false
	assert.Equal(uint16(InverterStatusOff), operatingState(v))

	v = testValues()
	assert.Equal(uint16(StorageChargeStatusCharging), chargeStatus(v))
	v.StateOfCharge = 100
	assert.Equal(uint16(StorageChargeStatusFull), chargeStatus(v))
	v.BatteryCharging, v.StateOfCharge = false, 0
	assert.Equal(uint16(StorageChargeStatusEmpty), chargeStatus(v))
	v.StateOfCharge = 30
	assert.Equal(uint16(StorageChargeStatusDischarging), chargeStatus(v))
	v.BatteryConnected = false
	assert.Equal(uint16(StorageChargeStatusOff), chargeStatus(v))
}

func TestRequestHandler(t *testing.T) {

	assert := assert.New(t)

	h := NewRequestHandler()
	h.Update(1, EncodeInverterImage(testInfo(), testValues()))

	res, err := h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 1, Addr: SUNSPEC_BASE_ADDR + 2, Quantity: 2})
	assert.NoError(err)
	assert.Equal([]uint16{SUNSPEC_WK_COMMON, SUNSPEC_LEN_COMMON}, res)

	_, err = h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 2, Addr: SUNSPEC_BASE_ADDR, Quantity: 2})
	assert.ErrorIs(err, modbus.ErrIllegalDataAddress, "unknown unit")

	_, err = h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 1, Addr: SUNSPEC_BASE_ADDR - 1, Quantity: 2})
	assert.ErrorIs(err, modbus.ErrIllegalDataAddress, "below the image")

	_, err = h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 1, Addr: SUNSPEC_BASE_ADDR + uint16(IMAGE_SIZE) - 1, Quantity: 2})
	assert.ErrorIs(err, modbus.ErrIllegalDataAddress, "past the image")

	_, err = h.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 1, Addr: SUNSPEC_BASE_ADDR, Quantity: 1, IsWrite: true, Args: []uint16{1}})
	assert.ErrorIs(err, modbus.ErrIllegalFunction, "read only")

	_, err = h.HandleCoils(&modbus.CoilsRequest{UnitId: 1})
	assert.ErrorIs(err, modbus.ErrIllegalFunction)
}

func TestRegisterServerRoundTrip(t *testing.T) {

	assert := assert.New(t)

	server, err := NewRegisterServer(TEST_HOST, TEST_PORT, 2, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, server.Start())
	defer server.Stop()

	server.Update(1, EncodeInverterImage(testInfo(), testValues()))

	reader, err := CreateInverterReader(TEST_HOST, TEST_PORT, 1, 2*time.Second)
	require.NoError(t, err)
	require.NoError(t, reader.Open())
	defer reader.Close()

	info, err := reader.GetInfo()
	require.NoError(t, err)
	assert.Equal("Grean World", info.Manufacturer)
	assert.Equal("Simulated hybrid inverter", info.Model)
	assert.Equal("1.0.0", info.Version)
	assert.Equal("inv1", info.Serial)
	assert.Equal(uint8(1), info.UnitId)
	assert.Equal(uint32(5000), info.MaxRatedPowerWatt)

	state, err := reader.GetState()
	require.NoError(t, err)
	assert.InDelta(47.3, state.CabinetTemperature, 0.001)
	assert.InDelta(50.02, state.OutputFrequency, 0.001)
	assert.InDelta(2000, state.ACPowerWatt, 0.001)
	assert.Equal(uint32(123456), state.EnergyWh)
	assert.Equal(InverterStatusMPPTStr, state.OperatingStateStr)

	storage, err := reader.GetStorageState()
	require.NoError(t, err)
	assert.InDelta(64.5, storage.StateOfCharge, 0.001)
	assert.Equal(StorageChargeStatusChargingStr, storage.ChargeStatusStr)

	// the image follows updates
	values := testValues()
	values.On = false
	server.Update(1, EncodeInverterImage(testInfo(), values))
	state, err = reader.GetState()
	require.NoError(t, err)
	assert.Equal(InverterStatusOffStr, state.OperatingStateStr)
}
