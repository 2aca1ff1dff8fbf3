package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Quantum1000/the-factory-must-grow/internal/logging"
	"github.com/Quantum1000/the-factory-must-grow/internal/vec"
	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/google/uuid"
)

// Типы событий сетки
const (
	EventTilePlaced  = "TilePlaced"
	EventTileMerged  = "TileMerged"
	EventTileRemoved = "TileRemoved"
)

// TileEventPayloadVersion - версия схемы TileEvent
const TileEventPayloadVersion = 1

// TileEvent - полезная нагрузка событий сетки
type TileEvent struct {
	WorldID  string         `json:"world_id"`
	Index    vec.Vec2       `json:"index"`
	Position vec.Vec2       `json:"position"`
	Type     world.TileType `json:"type"`
	Rotation uint8          `json:"rotation"`
	Occupied int            `json:"occupied"`
	Origin   string         `json:"origin"`
}

// PlacementPublisher превращает успешные размещения в события шины.
// Публикуются только успешные размещения игрока: генерация и восстановление
// из снимка событий не порождают.
type PlacementPublisher struct {
	bus     EventBus
	source  string
	worldID string
	timeout time.Duration
	logger  *logging.Logger
}

// NewPlacementPublisher создаёт наблюдателя для шины bus
func NewPlacementPublisher(bus EventBus, source, worldID string) *PlacementPublisher {
	return &PlacementPublisher{
		bus:     bus,
		source:  source,
		worldID: worldID,
		timeout: 2 * time.Second,
		logger:  logging.GetEventBusLogger(),
	}
}

// SetWorldID меняет идентификатор мира, например после загрузки снимка
func (p *PlacementPublisher) SetWorldID(id string) { p.worldID = id }

// OnPlacement реализует world.PlacementObserver
func (p *PlacementPublisher) OnPlacement(ev world.PlacementEvent) {
	if ev.Err != nil || ev.Source != world.SourcePlayer {
		return
	}
	eventType := eventTypeFor(ev.Outcome)
	if eventType == "" {
		return
	}

	payload, err := json.Marshal(TileEvent{
		WorldID:  p.worldID,
		Index:    ev.Index,
		Position: ev.Position,
		Type:     ev.Type,
		Rotation: ev.Rotation,
		Occupied: ev.Occupied,
		Origin:   ev.Source,
	})
	if err != nil {
		p.logger.Error("сериализация события %s: %v", eventType, err)
		return
	}

	env := &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    p.source,
		EventType: eventType,
		Version:   TileEventPayloadVersion,
		Priority:  3,
		Payload:   payload,
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.bus.Publish(ctx, env); err != nil {
		p.logger.Warn("публикация %s %s: %v", eventType, ev.Index, err)
	}
}

func eventTypeFor(o world.Outcome) string {
	switch o {
	case world.OutcomePlaced:
		return EventTilePlaced
	case world.OutcomeMerged:
		return EventTileMerged
	case world.OutcomeRemoved:
		return EventTileRemoved
	}
	return ""
}

// DecodeTileEvent разбирает полезную нагрузку события сетки
func DecodeTileEvent(ev *Envelope) (TileEvent, error) {
	var te TileEvent
	err := json.Unmarshal(ev.Payload, &te)
	return te, err
}
