package whisper

import (
	"fmt"
	"log"
	"sync"

	"voice-input/internal/models"
)

// Cache держит не более одного открытого движка на категорию модели.
// Движки создаются лениво и живут до явного Cleanup - автоматического
// вытеснения нет, переключение категорий не перезагружает уже открытое.
type Cache struct {
	mu      sync.Mutex
	store   *models.Store
	engines map[models.Category]*Engine
}

// NewCache создаёт кеш поверх хранилища моделей.
func NewCache(store *models.Store) *Cache {
	return &Cache{
		store:   store,
		engines: make(map[models.Category]*Engine),
	}
}

// EngineFor возвращает движок категории, открывая его при первом
// обращении. Файл модели сначала проверяется через mmap-представление,
// без копирования в кучу.
func (c *Cache) EngineFor(category models.Category) (*Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if eng, ok := c.engines[category]; ok {
		return eng, nil
	}

	mb, err := c.store.LoadBytes(category)
	if err != nil {
		return nil, fmt.Errorf("модель категории %s недоступна: %w", category, err)
	}
	mb.Release()

	eng, err := Open(c.store.Path(category))
	if err != nil {
		return nil, err
	}

	c.engines[category] = eng
	log.Printf("Модель %s загружена и закеширована", category)
	return eng, nil
}

// Cleanup закрывает все закешированные движки и очищает кеш.
// Повторный вызов безопасен.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for category, eng := range c.engines {
		if err := eng.Close(); err != nil {
			log.Printf("Ошибка закрытия движка %s: %v", category, err)
		}
	}
	c.engines = make(map[models.Category]*Engine)
}
