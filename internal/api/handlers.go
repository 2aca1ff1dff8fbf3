package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Quantum1000/the-factory-must-grow/internal/app"
	"github.com/Quantum1000/the-factory-must-grow/internal/display"
	"github.com/Quantum1000/the-factory-must-grow/internal/storage"
	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/gin-gonic/gin"
)

// PlaceRequest - тело POST /api/tiles/:x/:y
type PlaceRequest struct {
	Type      string   `json:"type" binding:"required"`
	Rotation  uint8    `json:"rotation"`
	Resources []string `json:"resources,omitempty"`
}

// PlaceResponse - результат размещения
type PlaceResponse struct {
	Outcome string         `json:"outcome"`
	Tile    world.TileView `json:"tile"`
}

// LoadRequest - тело POST /api/world/load
type LoadRequest struct {
	ID string `json:"id" binding:"required"`
}

// tileType собирает тип клетки из запроса
func (r PlaceRequest) tileType() (world.TileType, error) {
	kind, err := world.ParseTileKind(r.Type)
	if err != nil {
		return world.TileType{}, err
	}
	if kind != world.KindResource {
		if len(r.Resources) > 0 {
			return world.TileType{}, errors.New("resources допустимы только для type=resource")
		}
		return world.Of(kind), nil
	}

	ids := make([]world.ResourceID, 0, len(r.Resources))
	for _, name := range r.Resources {
		id, err := world.ParseResourceID(name)
		if err != nil {
			return world.TileType{}, err
		}
		ids = append(ids, id)
	}
	stack, err := world.NewResourceStack(ids...)
	if err != nil {
		return world.TileType{}, err
	}
	return world.ResourceTile(stack), nil
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

// statusFor отображает ошибки мира в HTTP-статусы
func statusFor(err error) int {
	switch {
	case errors.Is(err, world.ErrIllegalPlacement):
		return http.StatusConflict
	case errors.Is(err, world.ErrOutOfBounds), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, world.ErrNotGenerated), errors.Is(err, app.ErrNoRepository):
		return http.StatusServiceUnavailable
	case errors.Is(err, app.ErrRegionTooLarge), errors.Is(err, world.ErrInvalidOptions):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (rs *RestServer) replyError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	fail(c, status, err.Error())
}

// tileCoords разбирает индексы клетки из пути
func tileCoords(c *gin.Context) (vec.Vec2, bool) {
	x, errX := strconv.Atoi(c.Param("x"))
	y, errY := strconv.Atoi(c.Param("y"))
	if errX != nil || errY != nil {
		fail(c, http.StatusBadRequest, "координаты клетки должны быть целыми числами")
		return vec.Vec2{}, false
	}
	return vec.Vec2{X: x, Y: y}, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, "параметр "+name+" должен быть целым числом")
		return 0, false
	}
	return v, true
}

func (rs *RestServer) handleWorldInfo(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о мире",
		Data:    rs.game.Info(),
	})
}

// handleWorldMap отдаёт ASCII-карту вокруг клетки (x, y), по умолчанию вокруг центра
func (rs *RestServer) handleWorldMap(c *gin.Context) {
	info := rs.game.Info()
	if info.State != world.StateGenerated.String() {
		rs.replyError(c, world.ErrNotGenerated)
		return
	}
	x, ok := queryInt(c, "x", info.Size/2)
	if !ok {
		return
	}
	y, ok := queryInt(c, "y", info.Size/2)
	if !ok {
		return
	}
	radius, ok := queryInt(c, "radius", 16)
	if !ok {
		return
	}
	if radius < 0 || radius > 64 {
		fail(c, http.StatusBadRequest, "radius должен быть в [0, 64]")
		return
	}

	var out string
	rs.game.WithGrid(func(g *world.Grid) {
		out = display.RenderASCII(g, vec.Vec2{X: x, Y: y}, radius)
	})
	c.String(http.StatusOK, out)
}

func (rs *RestServer) handleGetTile(c *gin.Context) {
	p, ok := tileCoords(c)
	if !ok {
		return
	}
	view, err := rs.game.Tile(p)
	if err != nil {
		rs.replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Клетка", Data: view})
}

// handleGetPosition ищет клетку по координатам относительно центра мира
func (rs *RestServer) handleGetPosition(c *gin.Context) {
	pos, ok := tileCoords(c)
	if !ok {
		return
	}
	view, err := rs.game.TileAt(pos)
	if err != nil {
		rs.replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Клетка", Data: view})
}

func (rs *RestServer) handlePlaceTile(c *gin.Context) {
	p, ok := tileCoords(c)
	if !ok {
		return
	}
	var req PlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	tt, err := req.tileType()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	rs.place(c, p, tt, req.Rotation)
}

func (rs *RestServer) handleRemoveTile(c *gin.Context) {
	p, ok := tileCoords(c)
	if !ok {
		return
	}
	rs.place(c, p, world.Empty, 0)
}

func (rs *RestServer) place(c *gin.Context, p vec.Vec2, tt world.TileType, rotation uint8) {
	outcome, err := rs.game.Place(p, tt, rotation)
	if err != nil {
		rs.replyError(c, err)
		return
	}
	view, err := rs.game.Tile(p)
	if err != nil {
		rs.replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Размещение выполнено",
		Data:    PlaceResponse{Outcome: outcome.String(), Tile: view},
	})
}

func (rs *RestServer) handleRegion(c *gin.Context) {
	var coords [4]int
	for i, name := range []string{"x0", "y0", "x1", "y1"} {
		raw, exists := c.GetQuery(name)
		if !exists {
			fail(c, http.StatusBadRequest, "обязательные параметры: x0, y0, x1, y1")
			return
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "параметр "+name+" должен быть целым числом")
			return
		}
		coords[i] = v
	}
	views, err := rs.game.Region(vec.Vec2{X: coords[0], Y: coords[1]}, vec.Vec2{X: coords[2], Y: coords[3]})
	if err != nil {
		rs.replyError(c, err)
		return
	}
	if views == nil {
		views = []world.TileView{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Область", Data: views})
}

func (rs *RestServer) handleSave(c *gin.Context) {
	id, err := rs.game.Save(c.Request.Context())
	if err != nil {
		rs.replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Мир сохранён",
		Data:    gin.H{"id": id},
	})
}

func (rs *RestServer) handleLoad(c *gin.Context) {
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	if err := rs.game.Load(c.Request.Context(), req.ID); err != nil {
		rs.replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Мир загружен", Data: rs.game.Info()})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	ds := rs.game.Display().Stats()
	byKind := make(map[string]int, len(ds.ByKind))
	for k, n := range ds.ByKind {
		byKind[k.String()] = n
	}

	displayStats := gin.H{
		"live":      ds.Live,
		"created":   ds.Created,
		"destroyed": ds.Destroyed,
		"by_kind":   byKind,
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data: gin.H{
			"world":   rs.game.Info(),
			"server":  rs.metrics.Collect(),
			"display": displayStats,
		},
	})
}
