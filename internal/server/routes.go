package server

import (
	"errors"
	"net/http"

	"github.com/worldgrean1/grean-world-sub001/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type activeBody struct {
	Active *bool `json:"active"`
}

type enabledBody struct {
	Enabled *bool `json:"enabled"`
}

type showBody struct {
	Show *bool `json:"show"`
}

type loadBody struct {
	Percentage *float64 `json:"percentage"`
}

type energyCommandView struct {
	Applied bool                        `json:"applied"`
	State   domain.EnergySystemSnapshot `json:"state"`
}

type startView struct {
	Started bool                        `json:"started"`
	Reason  string                      `json:"reason,omitempty"`
	State   domain.EnergySystemSnapshot `json:"state"`
}

type errorView struct {
	Error string `json:"error"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)

	energy := e.Group("/api/energy")
	energy.GET("", s.GetEnergyHandler)
	energy.POST("/start", s.StartEnergyHandler)
	energy.POST("/deactivate", s.energyCommand(func(echo.Context) (domain.EnergySystemRequest, error) {
		return domain.DeactivateFullSystemRequest{}, nil
	}))
	energy.POST("/animations/toggle", s.energyCommand(func(echo.Context) (domain.EnergySystemRequest, error) {
		return domain.ToggleAnimationsRequest{}, nil
	}))
	energy.PUT("/inverter", s.energyCommand(func(c echo.Context) (domain.EnergySystemRequest, error) {
		active, err := bindActive(c)
		return domain.SetInverterActiveRequest{Active: active}, err
	}))
	energy.PUT("/switch", s.energyCommand(func(c echo.Context) (domain.EnergySystemRequest, error) {
		active, err := bindActive(c)
		return domain.SetSwitchActiveRequest{Active: active}, err
	}))
	energy.PUT("/switch/enabled", s.energyCommand(func(c echo.Context) (domain.EnergySystemRequest, error) {
		var body enabledBody
		if err := c.Bind(&body); err != nil || body.Enabled == nil {
			return nil, errBadPayload
		}
		return domain.SetSwitchEnabledRequest{Enabled: *body.Enabled}, nil
	}))
	energy.PUT("/power-flow", s.energyCommand(func(c echo.Context) (domain.EnergySystemRequest, error) {
		active, err := bindActive(c)
		return domain.SetPowerFlowActiveRequest{Active: active}, err
	}))
	energy.PUT("/hero", s.energyCommand(func(c echo.Context) (domain.EnergySystemRequest, error) {
		show, err := bindShow(c)
		return domain.SetShowHeroSectionRequest{Show: show}, err
	}))
	energy.PUT("/tag", s.energyCommand(func(c echo.Context) (domain.EnergySystemRequest, error) {
		show, err := bindShow(c)
		return domain.SetShowTagSectionRequest{Show: show}, err
	}))

	inverters := e.Group("/api/inverters")
	inverters.GET("", s.ListInvertersHandler)
	inverters.GET("/:id", s.GetInverterHandler)
	inverters.POST("/:id/mode/cycle", s.inverterCommand(func(c echo.Context, id domain.InverterRequestMixIn) (domain.InverterRequest, error) {
		return domain.CycleModeRequest{InverterRequestMixIn: id}, nil
	}))
	inverters.POST("/:id/display/cycle", s.inverterCommand(func(c echo.Context, id domain.InverterRequestMixIn) (domain.InverterRequest, error) {
		return domain.CycleDisplayOptionRequest{InverterRequestMixIn: id}, nil
	}))
	inverters.PUT("/:id/load", s.inverterCommand(func(c echo.Context, id domain.InverterRequestMixIn) (domain.InverterRequest, error) {
		var body loadBody
		if err := c.Bind(&body); err != nil || body.Percentage == nil {
			return nil, errBadPayload
		}
		return domain.SetLoadPercentageRequest{InverterRequestMixIn: id, Percentage: *body.Percentage}, nil
	}))

	e.GET("/ws", s.WebSocketHandler)

	if s.metrics {
		registry := prometheus.NewRegistry()
		registry.MustRegister(NewCollector(s.rootContext, s.masterActor))
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return e
}

var errBadPayload = errors.New("invalid payload")

func bindActive(c echo.Context) (bool, error) {
	var body activeBody
	if err := c.Bind(&body); err != nil || body.Active == nil {
		return false, errBadPayload
	}
	return *body.Active, nil
}

func bindShow(c echo.Context) (bool, error) {
	var body showBody
	if err := c.Bind(&body); err != nil || body.Show == nil {
		return false, errBadPayload
	}
	return *body.Show, nil
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, HEALTH_TIMEOUT).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) GetEnergyHandler(c echo.Context) error {
	resp, err := requestMaster[domain.GetEnergySystemStateResponse](s, domain.GetEnergySystemStateRequest{})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp.State.Snapshot())
}

func (s *Server) StartEnergyHandler(c echo.Context) error {
	resp, err := requestMaster[domain.StartEnergySystemResponse](s, domain.StartEnergySystemRequest{})
	if err != nil {
		return errorResponse(c, err)
	}
	status := http.StatusAccepted
	if !resp.Started {
		status = http.StatusConflict
	}
	return c.JSON(status, startView{
		Started: resp.Started,
		Reason:  resp.Reason,
		State:   resp.State.Snapshot(),
	})
}

// energyCommand answers 200 with Applied=false when a guard ignored the command.
func (s *Server) energyCommand(parse func(echo.Context) (domain.EnergySystemRequest, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := parse(c)
		if err != nil {
			return errorResponse(c, err)
		}
		resp, err := requestMaster[domain.EnergySystemCommandResponse](s, req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, energyCommandView{
			Applied: resp.Applied,
			State:   resp.State.Snapshot(),
		})
	}
}

func (s *Server) ListInvertersHandler(c echo.Context) error {
	resp, err := requestMaster[domain.ListInvertersResponse](s, domain.ListInvertersRequest{})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp.Inverters)
}

func (s *Server) GetInverterHandler(c echo.Context) error {
	resp, err := requestMaster[domain.GetInverterSnapshotResponse](s, domain.GetInverterSnapshotRequest{
		InverterRequestMixIn: domain.InverterRequestMixIn{Id: c.Param("id")},
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, resp.Snapshot)
}

func (s *Server) inverterCommand(parse func(echo.Context, domain.InverterRequestMixIn) (domain.InverterRequest, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := parse(c, domain.InverterRequestMixIn{Id: c.Param("id")})
		if err != nil {
			return errorResponse(c, err)
		}
		resp, err := requestMaster[domain.InverterCommandResponse](s, req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(http.StatusOK, resp.Snapshot)
	}
}

// requestMaster waits for the typed response of the master and unwraps the
// response error.
func requestMaster[T domain.ActorResponse](s *Server, msg any) (T, error) {
	var zero T
	res, err := s.rootContext.RequestFuture(s.masterActor, msg, s.requestTimeout).Result()
	if err != nil {
		return zero, err
	}
	resp, ok := res.(T)
	if !ok {
		return zero, errors.New("unexpected response")
	}
	if resp.HasResponseError() {
		return zero, resp.GetResponseError()
	}
	return resp, nil
}

func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadPayload):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownInverter):
		status = http.StatusNotFound
	case errors.Is(err, actor.ErrTimeout), errors.Is(err, actor.ErrDeadLetter):
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, errorView{Error: err.Error()})
}
