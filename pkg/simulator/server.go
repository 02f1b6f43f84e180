package simulator

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"

	"modbushil/pkg/apis/response"
	"modbushil/pkg/registry"
	"modbushil/pkg/runtime/constant"
)

type InitRequest struct {
	SID            string  `json:"sid"`
	TimeResolution float64 `json:"time_resolution"`
	StepSize       int64   `json:"step_size"`
	UseAsync       bool    `json:"use_async"`
}

type CreateRequest struct {
	Num   int    `json:"num"`
	Model string `json:"model" binding:"required"`
	Host  string `json:"host" binding:"required"`
	Port  int    `json:"port" binding:"required"`
}

type StepRequest struct {
	Time       int64  `json:"time"`
	Inputs     Inputs `json:"inputs"`
	MaxAdvance int64  `json:"max_advance"`
}

type StepResponse struct {
	NextTime int64 `json:"next_time"`
}

type DataRequest struct {
	Outputs Outputs `json:"outputs"`
}

type RegisterModelRequest struct {
	Name   string                 `json:"name" binding:"required"`
	Config map[string]interface{} `json:"config" binding:"required"`
}

type ModelsResponse struct {
	Models []string `json:"models"`
}

type HostLoad struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryTotal   uint64  `json:"memory_total"`
}

type StatsResponse struct {
	Session  string   `json:"session"`
	Entities int      `json:"entities"`
	Stats    Stats    `json:"stats"`
	Host     HostLoad `json:"host"`
}

func InstallHandler(group *gin.RouterGroup, sim *Simulator, reg *registry.Registry) {
	group.POST("/init", initSimulator(sim))
	group.GET("/meta", getMeta(sim))
	group.POST("/entities", createEntities(sim))
	group.POST("/step", step(sim))
	group.POST("/data", getData(sim))
	group.POST("/finalize", finalize(sim))
	group.GET("/models", listModels(reg))
	group.POST("/models", registerModel(reg))
	group.GET("/stats", getStats(sim))
}

func initSimulator(sim *Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req InitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			klog.V(2).InfoS("Failed to parse init request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		meta, err := sim.Init(req.SID, req.TimeResolution, req.StepSize, req.UseAsync)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, meta)
	}
}

func getMeta(sim *Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, sim.Meta())
	}
}

func createEntities(sim *Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := CreateRequest{Num: 1}
		if err := c.ShouldBindJSON(&req); err != nil {
			klog.V(2).InfoS("Failed to parse create request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestBody(err)))
			return
		}
		entities, err := sim.Create(req.Num, req.Model, req.Host, req.Port)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entities)
	}
}

func step(sim *Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StepRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			klog.V(2).InfoS("Failed to parse step request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		next, err := sim.Step(req.Time, req.Inputs, req.MaxAdvance)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, StepResponse{NextTime: next})
	}
}

func getData(sim *Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DataRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			klog.V(2).InfoS("Failed to parse data request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		data, err := sim.GetData(req.Outputs)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, data)
	}
}

func finalize(sim *Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := sim.Finalize(); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listModels(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, ModelsResponse{Models: nonNil(reg.Models())})
	}
}

func registerModel(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterModelRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			klog.V(2).InfoS("Failed to parse model request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestBody(err)))
			return
		}
		if err := reg.RegisterRaw(req.Name, req.Config); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, ModelsResponse{Models: reg.Models()})
	}
}

func getStats(sim *Simulator) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := StatsResponse{
			Session:  sim.Session(),
			Entities: len(sim.Entities()),
			Stats:    sim.Stats(),
		}
		if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
			resp.Host.CPUPercent = percents[0]
		} else if err != nil {
			klog.V(4).InfoS("Failed to read host cpu load", "err", err)
		}
		if vm, err := mem.VirtualMemory(); err == nil {
			resp.Host.MemoryPercent = vm.UsedPercent
			resp.Host.MemoryUsed = vm.Used
			resp.Host.MemoryTotal = vm.Total
		} else {
			klog.V(4).InfoS("Failed to read host memory load", "err", err)
		}
		c.JSON(http.StatusOK, resp)
	}
}

// abortWithError answers with one coded error per failure. The status is
// taken from the first matching error kind.
func abortWithError(c *gin.Context, err error) {
	var errs []error
	var agg utilerrors.Aggregate
	if errors.As(err, &agg) {
		errs = agg.Errors()
	} else {
		errs = []error{err}
	}
	multi := response.NewMultiError()
	for _, e := range errs {
		multi.Add(toResponseError(e))
	}
	c.JSON(statusOf(err), multi)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, constant.ErrUnknownModel), errors.Is(err, ErrUnknownEntity):
		return http.StatusNotFound
	case errors.Is(err, constant.ErrModelRegistered), errors.Is(err, constant.ErrRegistrySealed):
		return http.StatusConflict
	case errors.Is(err, ErrNotInitialized), errors.Is(err, ErrAlreadyInitialized), errors.Is(err, ErrFinalized):
		return http.StatusConflict
	case errors.Is(err, constant.ErrIO):
		return http.StatusBadGateway
	case isClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isClientError(err error) bool {
	for _, kind := range []error{
		constant.ErrConfig,
		constant.ErrValidation,
		constant.ErrAddress,
		constant.ErrMissingVariable,
		constant.ErrEncoding,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func toResponseError(err error) error {
	switch statusOf(err) {
	case http.StatusNotFound:
		return response.ErrResourceNotFound(err)
	case http.StatusConflict:
		if errors.Is(err, constant.ErrModelRegistered) {
			return response.ErrResourceExists(err)
		}
		return response.ErrSimulatorState(err)
	case http.StatusBadGateway:
		return response.ErrDeviceIO(err)
	case http.StatusBadRequest:
		return response.ErrInvalidConfig(err)
	default:
		return response.ErrInternal(err)
	}
}
