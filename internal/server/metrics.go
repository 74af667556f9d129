package server

import (
	"time"

	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

const COLLECT_TIMEOUT = 2 * time.Second

// Collector implements prometheus.Collector, reading the energy system and
// every inverter from the master on each scrape.
type Collector struct {
	rootContext *actor.RootContext
	masterActor *actor.PID

	energyFlag      *prometheus.Desc
	energyPhase     *prometheus.Desc
	inverterOn      *prometheus.Desc
	temperature     *prometheus.Desc
	fanSpeed        *prometheus.Desc
	load            *prometheus.Desc
	batteryLevel    *prometheus.Desc
	batteryCharging *prometheus.Desc
	energyGenerated *prometheus.Desc
	inputFrequency  *prometheus.Desc
	outputFrequency *prometheus.Desc
	fault           *prometheus.Desc
	connected       *prometheus.Desc
	info            *prometheus.Desc
	scrapeSuccess   *prometheus.Desc
}

func NewCollector(rootContext *actor.RootContext, masterActor *actor.PID) *Collector {
	inverterLabels := []string{"inverter"}
	return &Collector{
		rootContext: rootContext,
		masterActor: masterActor,
		energyFlag: prometheus.NewDesc(
			"grean_energy_system_flag",
			"Energy system flag (1=set, 0=unset)",
			[]string{"flag"},
			nil,
		),
		energyPhase: prometheus.NewDesc(
			"grean_energy_system_phase",
			"Current phase of the energy system (1 for the active phase)",
			[]string{"phase"},
			nil,
		),
		inverterOn: prometheus.NewDesc(
			"grean_inverter_on",
			"Inverter is running (1=yes, 0=no)",
			inverterLabels,
			nil,
		),
		temperature: prometheus.NewDesc(
			"grean_inverter_temperature_celsius",
			"Inverter temperature in degrees celsius",
			inverterLabels,
			nil,
		),
		fanSpeed: prometheus.NewDesc(
			"grean_inverter_fan_speed_percent",
			"Inverter fan speed in percent",
			inverterLabels,
			nil,
		),
		load: prometheus.NewDesc(
			"grean_inverter_load_percent",
			"Inverter load in percent",
			inverterLabels,
			nil,
		),
		batteryLevel: prometheus.NewDesc(
			"grean_inverter_battery_level_percent",
			"Battery state of charge in percent",
			inverterLabels,
			nil,
		),
		batteryCharging: prometheus.NewDesc(
			"grean_inverter_battery_charging",
			"Battery is currently charging (1=yes, 0=no)",
			inverterLabels,
			nil,
		),
		energyGenerated: prometheus.NewDesc(
			"grean_inverter_energy_generated_kwh_total",
			"Total energy generated in kilowatt-hours",
			inverterLabels,
			nil,
		),
		inputFrequency: prometheus.NewDesc(
			"grean_inverter_input_frequency_hz",
			"Grid input frequency in hertz",
			inverterLabels,
			nil,
		),
		outputFrequency: prometheus.NewDesc(
			"grean_inverter_output_frequency_hz",
			"Output frequency in hertz",
			inverterLabels,
			nil,
		),
		fault: prometheus.NewDesc(
			"grean_inverter_fault",
			"Inverter reports a fault (1=yes, 0=no)",
			inverterLabels,
			nil,
		),
		connected: prometheus.NewDesc(
			"grean_inverter_connected",
			"Inverter source connection (1=connected, 0=disconnected)",
			[]string{"inverter", "source"},
			nil,
		),
		info: prometheus.NewDesc(
			"grean_inverter_info",
			"Inverter information",
			[]string{"inverter", "name", "mode", "display"},
			nil,
		),
		scrapeSuccess: prometheus.NewDesc(
			"grean_scrape_success",
			"Whether reading the state from the actors was successful",
			[]string{"source"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.energyFlag
	ch <- c.energyPhase
	ch <- c.inverterOn
	ch <- c.temperature
	ch <- c.fanSpeed
	ch <- c.load
	ch <- c.batteryLevel
	ch <- c.batteryCharging
	ch <- c.energyGenerated
	ch <- c.inputFrequency
	ch <- c.outputFrequency
	ch <- c.fault
	ch <- c.connected
	ch <- c.info
	ch <- c.scrapeSuccess
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.collectEnergySystem(ch)
	c.collectInverters(ch)
}

func (c *Collector) collectEnergySystem(ch chan<- prometheus.Metric) {
	res, err := c.rootContext.RequestFuture(c.masterActor, domain.GetEnergySystemStateRequest{}, COLLECT_TIMEOUT).Result()
	resp, ok := res.(domain.GetEnergySystemStateResponse)
	if err != nil || !ok || resp.HasResponseError() {
		ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 0, "energy_system")
		return
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 1, "energy_system")

	s := resp.State
	flags := []struct {
		name  string
		value bool
	}{
		{"inverter_active", s.InverterActive},
		{"switch_active", s.SwitchActive},
		{"switch_enabled", s.SwitchEnabled},
		{"booting", s.Booting},
		{"power_flow_active", s.PowerFlowActive},
		{"show_hero_section", s.ShowHeroSection},
		{"show_tag_section", s.ShowTagSection},
		{"animations_paused", s.AnimationsPaused},
	}
	for _, f := range flags {
		ch <- prometheus.MustNewConstMetric(c.energyFlag, prometheus.GaugeValue, boolValue(f.value), f.name)
	}

	phase := s.Phase()
	for _, p := range []domain.Phase{domain.PhaseIdle, domain.PhaseBooting, domain.PhaseActiveNoFlow,
		domain.PhaseActiveFlowing, domain.PhaseActiveReady, domain.PhaseSwitchOn} {
		ch <- prometheus.MustNewConstMetric(c.energyPhase, prometheus.GaugeValue, boolValue(p == phase), string(p))
	}
}

func (c *Collector) collectInverters(ch chan<- prometheus.Metric) {
	res, err := c.rootContext.RequestFuture(c.masterActor, domain.ListInvertersRequest{}, COLLECT_TIMEOUT).Result()
	resp, ok := res.(domain.ListInvertersResponse)
	if err != nil || !ok || resp.HasResponseError() {
		ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 0, "inverters")
		return
	}
	ch <- prometheus.MustNewConstMetric(c.scrapeSuccess, prometheus.GaugeValue, 1, "inverters")

	for _, inv := range resp.Inverters {
		t := inv.Telemetry
		id := inv.Id
		ch <- prometheus.MustNewConstMetric(c.inverterOn, prometheus.GaugeValue, boolValue(inv.On), id)
		ch <- prometheus.MustNewConstMetric(c.temperature, prometheus.GaugeValue, t.Temperature, id)
		ch <- prometheus.MustNewConstMetric(c.fanSpeed, prometheus.GaugeValue, t.FanSpeed, id)
		ch <- prometheus.MustNewConstMetric(c.load, prometheus.GaugeValue, t.LoadPercentage, id)
		ch <- prometheus.MustNewConstMetric(c.batteryLevel, prometheus.GaugeValue, t.BatteryLevel, id)
		ch <- prometheus.MustNewConstMetric(c.batteryCharging, prometheus.GaugeValue, boolValue(t.BatteryCharging), id)
		ch <- prometheus.MustNewConstMetric(c.energyGenerated, prometheus.CounterValue, t.TotalEnergyGenerated, id)
		ch <- prometheus.MustNewConstMetric(c.inputFrequency, prometheus.GaugeValue, t.InputFrequency, id)
		ch <- prometheus.MustNewConstMetric(c.outputFrequency, prometheus.GaugeValue, t.OutputFrequency, id)
		ch <- prometheus.MustNewConstMetric(c.fault, prometheus.GaugeValue, boolValue(t.FaultCondition), id)
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, boolValue(t.GridConnected), id, "grid")
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, boolValue(t.SolarConnected), id, "solar")
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, boolValue(t.BatteryConnected), id, "battery")
		ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1, id, inv.Name, string(t.Mode), t.DisplayOption.String())
	}
}

func boolValue(b bool) float64 {
	return lo.Ternary(b, 1.0, 0.0)
}
