package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/app"
	"github.com/Quantum1000/the-factory-must-grow/internal/logging"
	"github.com/Quantum1000/the-factory-must-grow/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer представляет REST API сервер мира
type RestServer struct {
	router  *gin.Engine
	httpSrv *http.Server
	game    *app.Game
	port    string
	metrics *ServerMetrics
	logger  *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port        string                // адрес для запуска сервера, например ":8088"
	Game        *app.Game             // сервис мира
	Registerer  prometheus.Registerer // регистр HTTP-метрик (глобальный при nil)
	Gatherer    prometheus.Gatherer   // источник /metrics (глобальный при nil)
	ServiceName string                // имя сервиса для otelgin
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.ServiceName == "" {
		config.ServiceName = "factory_api"
	}

	// Устанавливаем режим релиза для gin
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))

	logger := logging.GetAPILogger()
	router.Use(middleware.NewRequestLogger(logger).Handler())

	promMw := middleware.NewPrometheusMiddleware("factory_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	server := &RestServer{
		router: router,
		httpSrv: &http.Server{
			Addr:              config.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		game:    config.Game,
		port:    config.Port,
		metrics: NewServerMetrics(),
		logger:  logger,
	}
	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/world", rs.handleWorldInfo)
		api.GET("/world/map", rs.handleWorldMap)
		api.POST("/world/save", rs.handleSave)
		api.POST("/world/load", rs.handleLoad)

		api.GET("/tiles/:x/:y", rs.handleGetTile)
		api.GET("/positions/:x/:y", rs.handleGetPosition)
		api.POST("/tiles/:x/:y", rs.handlePlaceTile)
		api.DELETE("/tiles/:x/:y", rs.handleRemoveTile)
		api.GET("/region", rs.handleRegion)

		api.GET("/stats", rs.handleStats)
	}
}

// Handler возвращает http.Handler роутера (для httptest)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// handleHealth проверка состояния сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// Start запускает REST сервер и блокируется до Stop.
// После штатной остановки возвращает nil.
func (rs *RestServer) Start() error {
	rs.logger.Info("REST API слушает %s", rs.port)
	if err := rs.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop завершает сервер, дожидаясь активных запросов.
// Start после Stop сразу возвращает nil.
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.httpSrv.Shutdown(ctx)
}
