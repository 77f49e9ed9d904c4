// Package speech предоставляет абстракцию движков распознавания речи
// и оркестрацию вызовов инференса.
package speech

import (
	"errors"
	"strings"
	"time"

	"voice-input/internal/models"
)

// ErrInFlight вызов отклонён: другой инференс уже выполняется.
// Очереди нет - вызывающий ждёт завершения или отменяет.
var ErrInFlight = errors.New("распознавание уже выполняется")

// DefaultLanguage язык по умолчанию при пустой подсказке.
const DefaultLanguage = "en"

// Listener получает события распознавания. Колбэки приходят с потока
// инференса; UI-потребители обязаны переносить их асинхронно.
type Listener interface {
	OnRecognitionStarted()
	OnPartialResult(text string)
	OnRecognitionResult(text, languageCode string)
	OnRecognitionError(message string)
	OnRecognitionFinished()
}

// Result итог одного вызова распознавания. Терминальное значение,
// после создания не изменяется.
type Result struct {
	Text         string
	LanguageCode string
	Confidence   float32
	Timestamp    time.Time
}

// Engine - интерфейс движков распознавания речи.
type Engine interface {
	// Recognize запускает распознавание готового буфера сэмплов.
	// samples - float32 [-1, 1], 16kHz, mono. languageHint - список
	// кодов языков через запятую ("en", "de,fr", пусто = по умолчанию).
	Recognize(samples []float32, languageHint string) error

	// Cancel отменяет текущий инференс (кооперативно).
	Cancel()

	// IsRecognizing неблокирующий снимок состояния.
	IsRecognizing() bool

	// SetListener устанавливает получателя событий.
	SetListener(listener Listener)

	// Cleanup освобождает ресурсы движка. Повторный вызов безопасен.
	Cleanup()

	// Name возвращает название движка (для логирования).
	Name() string
}

// PrimaryLanguage возвращает основной язык подсказки: первый код
// списка после нормализации, язык по умолчанию для пустой подсказки.
func PrimaryLanguage(hint string) string {
	return parseLanguageHint(hint)[0]
}

// parseLanguageHint разбирает подсказку языка: список через запятую,
// каждый код нормализуется, пустая подсказка - язык по умолчанию.
// Дубликаты сохраняются: дубль первого кода - идиома строгой фиксации.
func parseLanguageHint(hint string) []string {
	var langs []string
	for _, part := range strings.Split(hint, ",") {
		if code := models.NormalizeLanguage(part); code != "" {
			langs = append(langs, code)
		}
	}
	if len(langs) == 0 {
		return []string{DefaultLanguage}
	}
	return langs
}
