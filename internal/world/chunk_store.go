package world

import (
	"sort"

	"github.com/annel0/blockworld/internal/vec"
)

// ChunkStore хранит разреженную карту загруженных чанков по координатам.
// Доступ сериализует WorldManager.
type ChunkStore struct {
	chunks map[vec.ChunkCoord]*Chunk
}

// NewChunkStore создаёт пустое хранилище
func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[vec.ChunkCoord]*Chunk)}
}

// Get возвращает чанк или nil
func (s *ChunkStore) Get(coord vec.ChunkCoord) *Chunk {
	return s.chunks[coord]
}

// Has сообщает, загружен ли чанк
func (s *ChunkStore) Has(coord vec.ChunkCoord) bool {
	_, ok := s.chunks[coord]
	return ok
}

// Put добавляет чанк и переводит его в состояние resident.
// Уже загруженный чанк с теми же координатами не заменяется.
func (s *ChunkStore) Put(c *Chunk) bool {
	if _, exists := s.chunks[c.Coord]; exists {
		return false
	}
	c.state = ChunkResident
	s.chunks[c.Coord] = c
	return true
}

// Remove выгружает чанк вместе со всеми его блоками
func (s *ChunkStore) Remove(coord vec.ChunkCoord) *Chunk {
	c, ok := s.chunks[coord]
	if !ok {
		return nil
	}
	delete(s.chunks, coord)
	c.state = ChunkEvicted
	c.payload = nil
	return c
}

// Len возвращает количество загруженных чанков
func (s *ChunkStore) Len() int {
	return len(s.chunks)
}

// Coords возвращает координаты загруженных чанков в детерминированном порядке
func (s *ChunkStore) Coords() []vec.ChunkCoord {
	keys := make([]vec.ChunkCoord, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].X != keys[j].X {
			return keys[i].X < keys[j].X
		}
		return keys[i].Z < keys[j].Z
	})
	return keys
}
