package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/blockworld/internal/logging"
	"github.com/annel0/blockworld/internal/middleware"
	"github.com/annel0/blockworld/internal/physics"
	"github.com/annel0/blockworld/internal/session"
	"github.com/annel0/blockworld/internal/storage"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

// RestServer реализует отладочный REST API над миром и сессией
type RestServer struct {
	router    *gin.Engine
	http      *http.Server
	world     *world.WorldManager
	session   *session.Session
	streamer  *world.Streamer
	repo      *storage.WorldRepo
	worldName string
	metrics   *ServerMetrics
	logger    *logging.Logger
}

// Config содержит зависимости REST сервера. Session, Streamer и Repo
// необязательны: соответствующие эндпоинты отвечают 503.
type Config struct {
	Port      string // адрес для запуска сервера, например ":8088"
	World     *world.WorldManager
	Session   *session.Session
	Streamer  *world.Streamer
	Repo      *storage.WorldRepo
	WorldName string
	Registry  *prometheus.Registry // nil означает дефолтный регистр
	Logger    *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Logger == nil {
		config.Logger = logging.GetServerLogger()
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("blockworld_api"))
	router.Use(middleware.NewRequestLogger(nil).Handler())

	var promMw *middleware.PrometheusMiddleware
	if config.Registry != nil {
		promMw = middleware.NewPrometheusMiddleware("blockworld_api", config.Registry)
		promMw.RegisterMetricsEndpoint(router, config.Registry)
	} else {
		promMw = middleware.NewPrometheusMiddleware("blockworld_api", nil)
		promMw.RegisterMetricsEndpoint(router, nil)
	}
	router.Use(promMw.Handler())

	rs := &RestServer{
		router:    router,
		world:     config.World,
		session:   config.Session,
		streamer:  config.Streamer,
		repo:      config.Repo,
		worldName: config.WorldName,
		metrics:   NewServerMetrics(),
		logger:    config.Logger,
	}
	rs.http = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/server", rs.handleServerInfo)

		api.GET("/block", rs.handleGetBlock)
		api.PUT("/block", rs.handlePlaceBlock)
		api.DELETE("/block", rs.handleRemoveBlock)

		api.GET("/chunks", rs.handleListChunks)
		api.GET("/chunks/:cx/:cz", rs.handleGetChunk)

		api.GET("/agent", rs.handleGetAgent)
		api.POST("/agent/input", rs.handleAgentInput)

		api.POST("/save", rs.handleSave)
		api.POST("/load", rs.handleLoad)
	}
}

// Handler возвращает http.Handler сервера (используется в тестах)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, GenericResponse{
		Success: status < http.StatusBadRequest,
		Message: message,
		Data:    data,
	})
}

// BlockRequest задаёт позицию и тип блока
type BlockRequest struct {
	X    int        `json:"x"`
	Y    int        `json:"y"`
	Z    int        `json:"z"`
	Kind block.Kind `json:"kind"`
}

// AgentInputRequest задаёт управление агентом до следующего запроса
type AgentInputRequest struct {
	Move  mgl64.Vec3 `json:"move"`
	Jump  bool       `json:"jump"`
	Look  mgl64.Vec3 `json:"look"`
	Break bool       `json:"break"`
	Place bool       `json:"place"`
	Kind  block.Kind `json:"kind"`
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleServerInfo возвращает информацию о сервере и мире
func (rs *RestServer) handleServerInfo(c *gin.Context) {
	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	info := map[string]interface{}{
		"name":        "blockworld",
		"status":      "running",
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.1f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.1f", cpuPercent),
		"memory":      rs.metrics.GetDetailedMemoryStats(),
		"world": map[string]interface{}{
			"name":     rs.worldName,
			"seed":     rs.world.Seed(),
			"epoch":    rs.world.Epoch(),
			"resident": rs.world.ResidentCount(),
			"edits":    rs.world.EditCount(),
		},
	}
	if rs.streamer != nil {
		info["streamer"] = rs.streamer.Stats()
	}

	respond(c, http.StatusOK, "Информация о сервере", info)
}

func queryPos(c *gin.Context) (vec.Vec3, error) {
	var pos vec.Vec3
	for _, f := range []struct {
		name string
		dst  *int
	}{{"x", &pos.X}, {"y", &pos.Y}, {"z", &pos.Z}} {
		v, err := strconv.Atoi(c.Query(f.name))
		if err != nil {
			return pos, fmt.Errorf("параметр %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return pos, nil
}

func (rs *RestServer) handleGetBlock(c *gin.Context) {
	pos, err := queryPos(c)
	if err != nil {
		respond(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	kind := rs.world.GetBlock(pos.X, pos.Y, pos.Z)
	respond(c, http.StatusOK, "Блок", gin.H{
		"pos":      pos,
		"kind":     kind,
		"solid":    rs.world.IsSolid(pos.X, pos.Y, pos.Z),
		"resident": rs.world.IsResident(pos.ChunkCoord()),
	})
}

// commandTimeout ограничивает ожидание кадра, выполняющего команду API
const commandTimeout = 5 * time.Second

// runCommand выполняет изменение мира через очередь сессии. false означает,
// что ответ уже отправлен.
func (rs *RestServer) runCommand(c *gin.Context, fn func(ctx context.Context) error) bool {
	if rs.session == nil {
		respond(c, http.StatusServiceUnavailable, "Сессия не запущена", nil)
		return false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), commandTimeout)
	defer cancel()

	err := fn(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respond(c, http.StatusServiceUnavailable, "Цикл симуляции не ответил", nil)
	default:
		respond(c, http.StatusUnprocessableEntity, err.Error(), nil)
	}
	return false
}

func (rs *RestServer) handlePlaceBlock(c *gin.Context) {
	var req BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "Неверный JSON", nil)
		return
	}

	var placed bool
	pos := vec.Vec3{X: req.X, Y: req.Y, Z: req.Z}
	if !rs.runCommand(c, func(ctx context.Context) (err error) {
		placed, err = rs.session.PlaceBlock(ctx, req.Kind, pos)
		return err
	}) {
		return
	}

	if !placed {
		respond(c, http.StatusConflict, "Блок не установлен", req)
		return
	}
	respond(c, http.StatusOK, "Блок установлен", req)
}

func (rs *RestServer) handleRemoveBlock(c *gin.Context) {
	pos, err := queryPos(c)
	if err != nil {
		respond(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	var removed bool
	if !rs.runCommand(c, func(ctx context.Context) (err error) {
		removed, err = rs.session.RemoveBlock(ctx, pos)
		return err
	}) {
		return
	}

	if !removed {
		respond(c, http.StatusConflict, "Блок не удалён", pos)
		return
	}
	respond(c, http.StatusOK, "Блок удалён", pos)
}

func (rs *RestServer) handleListChunks(c *gin.Context) {
	respond(c, http.StatusOK, "Загруженные чанки", gin.H{
		"resident": rs.world.ResidentChunks(),
		"dirty":    rs.world.DirtyChunks(),
	})
}

// handleGetChunk отдаёт сводку по чанку; ?entries=1 добавляет список блоков.
// Флаг dirty не снимается: это делает только рендер.
func (rs *RestServer) handleGetChunk(c *gin.Context) {
	cx, errX := strconv.Atoi(c.Param("cx"))
	cz, errZ := strconv.Atoi(c.Param("cz"))
	if errX != nil || errZ != nil {
		respond(c, http.StatusBadRequest, "Неверные координаты чанка", nil)
		return
	}

	chunk, ok := rs.world.Chunk(vec.ChunkCoord{X: cx, Z: cz})
	if !ok {
		respond(c, http.StatusNotFound, "Чанк не загружен", nil)
		return
	}

	digest := chunk.Digest()
	data := gin.H{
		"coord":   chunk.Coord,
		"state":   chunk.State().String(),
		"version": chunk.Version(),
		"non_air": chunk.NonAirCount(),
		"dirty":   chunk.Dirty(),
		"digest":  hex.EncodeToString(digest[:]),
	}
	if c.Query("entries") == "1" {
		data["entries"] = chunk.Payload().Entries
	}
	respond(c, http.StatusOK, "Чанк", data)
}

func (rs *RestServer) handleGetAgent(c *gin.Context) {
	if rs.session == nil {
		respond(c, http.StatusServiceUnavailable, "Сессия не запущена", nil)
		return
	}
	respond(c, http.StatusOK, "Агент", rs.session.Snapshot())
}

func (rs *RestServer) handleAgentInput(c *gin.Context) {
	if rs.session == nil {
		respond(c, http.StatusServiceUnavailable, "Сессия не запущена", nil)
		return
	}

	var req AgentInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "Неверный JSON", nil)
		return
	}
	if req.Place && req.Kind == block.Air {
		respond(c, http.StatusBadRequest, "Для установки нужен тип блока", nil)
		return
	}

	rs.session.SetInput(session.Input{
		Input:     physics.Input{Move: req.Move, Jump: req.Jump, Look: req.Look},
		Break:     req.Break,
		Place:     req.Place,
		PlaceKind: req.Kind,
	})
	respond(c, http.StatusAccepted, "Управление принято", req)
}

func (rs *RestServer) handleSave(c *gin.Context) {
	if rs.repo == nil {
		respond(c, http.StatusServiceUnavailable, "Хранилище не настроено", nil)
		return
	}

	ctx := c.Request.Context()
	data := rs.world.Save()
	if err := rs.repo.SaveWorld(ctx, rs.worldName, data); err != nil {
		rs.logger.Error("❌ Сохранение мира %s: %v", rs.worldName, err)
		respond(c, http.StatusInternalServerError, "Ошибка сохранения", nil)
		return
	}
	if rs.session != nil {
		pos := rs.session.Snapshot().Agent.Position
		if err := rs.repo.SaveAgentPosition(ctx, rs.worldName, pos); err != nil {
			rs.logger.Warn("⚠️ Позиция агента не сохранена: %v", err)
		}
	}

	respond(c, http.StatusOK, "Мир сохранён", gin.H{
		"name":  rs.worldName,
		"seed":  data.Seed,
		"edits": len(data.Edits),
	})
}

func (rs *RestServer) handleLoad(c *gin.Context) {
	if rs.repo == nil {
		respond(c, http.StatusServiceUnavailable, "Хранилище не настроено", nil)
		return
	}

	data, err := rs.repo.LoadWorld(c.Request.Context(), rs.worldName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		respond(c, http.StatusNotFound, "Сохранение не найдено", nil)
		return
	case err != nil:
		respond(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	if !rs.runCommand(c, func(ctx context.Context) error {
		return rs.session.LoadWorld(ctx, data)
	}) {
		return
	}
	respond(c, http.StatusOK, "Мир загружен", gin.H{
		"name":  rs.worldName,
		"seed":  data.Seed,
		"edits": len(data.Edits),
	})
}

// Start запускает REST сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.logger.Info("🌐 REST API слушает %s", rs.http.Addr)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно останавливает REST сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}
