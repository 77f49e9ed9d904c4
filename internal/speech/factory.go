package speech

import (
	"errors"
	"log"

	"voice-input/internal/models"
	"voice-input/internal/whisper"
)

// NewEngine выбирает реализацию движка на этапе сборки приложения:
// whisper при наличии хотя бы одной модели, иначе vosk как резерв.
// Выбор делается один раз, во время работы движок не меняется.
// languageHint - подсказка языка в формате Recognize; vosk одноязычный,
// поэтому ему достаётся только основной код подсказки.
func NewEngine(store *models.Store, voskModelPath, languageHint string) (Engine, error) {
	if store.HasAnyModel() {
		log.Printf("Используется движок whisper, модели в %s", store.Dir())
		return NewWhisperEngine(whisper.NewCache(store)), nil
	}
	if voskModelPath != "" {
		eng, err := NewVoskEngine(voskModelPath, PrimaryLanguage(languageHint))
		if err != nil {
			return nil, err
		}
		log.Printf("Модели whisper не найдены, используется vosk: %s", voskModelPath)
		return eng, nil
	}
	return nil, errors.New("нет доступных моделей распознавания")
}
