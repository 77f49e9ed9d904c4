package speech

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"

	vosk "github.com/alphacep/vosk-api/go"
)

// VoskEngine - резервный движок на базе Vosk. Используется когда
// whisper-модели недоступны. Модель фиксирована по языку, поэтому
// подсказка языка игнорируется; отмена не поддерживается.
type VoskEngine struct {
	mu         sync.Mutex
	model      *vosk.VoskModel
	recognizer *vosk.VoskRecognizer
	listener   Listener
	inFlight   atomic.Bool
	language   string
}

// voskResult структура для парсинга JSON результата от Vosk.
type voskResult struct {
	Text string `json:"text"`
}

// NewVoskEngine создаёт VoskEngine из пути к директории модели.
// language - код языка модели, возвращается в результатах.
func NewVoskEngine(modelPath, language string) (*VoskEngine, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("модель Vosk не найдена: %s", modelPath)
	}

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки модели Vosk: %w", err)
	}

	rec, err := vosk.NewRecognizer(model, 16000.0)
	if err != nil {
		model.Free()
		return nil, err
	}

	if language == "" {
		language = DefaultLanguage
	}

	return &VoskEngine{
		model:      model,
		recognizer: rec,
		language:   language,
	}, nil
}

// SetListener устанавливает получателя событий.
func (v *VoskEngine) SetListener(listener Listener) {
	v.mu.Lock()
	v.listener = listener
	v.mu.Unlock()
}

// Recognize распознаёт речь из буфера сэмплов. Vosk принимает PCM16,
// поэтому конвертируем float32 -> int16. Подсказка языка игнорируется:
// модель одноязычная.
func (v *VoskEngine) Recognize(samples []float32, languageHint string) error {
	if !v.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}

	v.mu.Lock()
	listener := v.listener
	v.mu.Unlock()

	go func() {
		defer func() {
			v.inFlight.Store(false)
			if listener != nil {
				listener.OnRecognitionFinished()
			}
		}()

		if listener != nil {
			listener.OnRecognitionStarted()
		}

		text, err := v.transcribe(samples)
		if err != nil {
			log.Printf("Ошибка распознавания Vosk: %v", err)
			if listener != nil {
				listener.OnRecognitionError("распознавание не удалось")
			}
			return
		}
		if listener != nil {
			listener.OnRecognitionResult(text, v.language)
		}
	}()
	return nil
}

func (v *VoskEngine) transcribe(samples []float32) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.recognizer == nil {
		return "", fmt.Errorf("движок Vosk уже закрыт")
	}

	// Конвертируем float32 [-1, 1] в int16 [-32768, 32767]
	pcm16 := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		val := int16(sample * math.MaxInt16)
		binary.LittleEndian.PutUint16(pcm16[i*2:], uint16(val))
	}

	v.recognizer.AcceptWaveform(pcm16)
	resultJSON := v.recognizer.FinalResult()

	// Сбрасываем распознаватель для следующего использования
	v.recognizer.Reset()

	var result voskResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", err
	}
	return result.Text, nil
}

// Cancel ничего не делает: Vosk обрабатывает буфер одним вызовом,
// точек кооперативной отмены нет.
func (v *VoskEngine) Cancel() {}

// IsRecognizing сообщает, выполняется ли распознавание.
func (v *VoskEngine) IsRecognizing() bool {
	return v.inFlight.Load()
}

// Cleanup освобождает нативные ресурсы. Повторный вызов безопасен.
func (v *VoskEngine) Cleanup() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.recognizer != nil {
		v.recognizer.Free()
		v.recognizer = nil
	}
	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
}

// Name возвращает название движка.
func (v *VoskEngine) Name() string {
	return "vosk"
}
