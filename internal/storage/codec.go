package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Quantum1000/the-factory-must-grow/internal/world"
	"github.com/klauspost/compress/zstd"
)

// Codec кодирует снимки в JSON, сжатый zstd. Encoder и Decoder
// переиспользуются и безопасны для конкурентных EncodeAll/DecodeAll.
type Codec struct {
	once    sync.Once
	err     error
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

var defaultCodec Codec

func (c *Codec) init() error {
	c.once.Do(func() {
		c.encoder, c.err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if c.err != nil {
			return
		}
		c.decoder, c.err = zstd.NewReader(nil)
	})
	return c.err
}

// Encode сериализует снимок
func (c *Codec) Encode(snap world.Snapshot) ([]byte, error) {
	if err := c.init(); err != nil {
		return nil, fmt.Errorf("инициализация zstd: %w", err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации снимка: %w", err)
	}
	return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// Decode восстанавливает снимок из байтов Encode
func (c *Codec) Decode(data []byte) (world.Snapshot, error) {
	var snap world.Snapshot
	if err := c.init(); err != nil {
		return snap, fmt.Errorf("инициализация zstd: %w", err)
	}
	raw, err := c.decoder.DecodeAll(data, nil)
	if err != nil {
		return snap, fmt.Errorf("ошибка распаковки снимка: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("ошибка десериализации снимка: %w", err)
	}
	return snap, nil
}
