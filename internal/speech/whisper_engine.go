package speech

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"voice-input/internal/models"
	"voice-input/internal/whisper"
)

// inferencer - минимальная поверхность whisper.Engine, нужная
// оркестратору. Выделена для подмены в тестах.
type inferencer interface {
	Infer(samples []float32, opts whisper.Options, onPartial func(string)) (string, error)
	Cancel()
}

// WhisperEngine - основной движок распознавания на базе whisper.cpp.
// Держит не больше одной загруженной модели на категорию и переключает
// их по границе английская/мультиязычная. Вызовы Recognize выполняются
// строго последовательно на одном рабочем потоке.
type WhisperEngine struct {
	mu         sync.Mutex
	engineFor  func(models.Category) (inferencer, error)
	cleanup    func()
	current    inferencer
	currentCat models.Category
	loaded     bool
	listener   Listener

	prompt            string
	mode              whisper.DecodingMode
	bailLanguages     []string
	suppressNonSpeech bool

	lastResult *Result

	inFlight  atomic.Bool
	jobs      chan func()
	quit      chan struct{}
	closeOnce sync.Once
}

// NewWhisperEngine создаёт движок поверх кэша моделей.
func NewWhisperEngine(cache *whisper.Cache) *WhisperEngine {
	return newWhisperEngine(func(cat models.Category) (inferencer, error) {
		return cache.EngineFor(cat)
	}, cache.Cleanup)
}

func newWhisperEngine(engineFor func(models.Category) (inferencer, error), cleanup func()) *WhisperEngine {
	e := &WhisperEngine{
		engineFor: engineFor,
		cleanup:   cleanup,
		mode:      whisper.Greedy,
		jobs:      make(chan func(), 1),
		quit:      make(chan struct{}),
	}
	go e.worker()
	return e
}

// worker выполняет задания инференса по одному, в порядке поступления.
func (e *WhisperEngine) worker() {
	for {
		select {
		case job := <-e.jobs:
			job()
		case <-e.quit:
			return
		}
	}
}

// SetListener устанавливает получателя событий распознавания.
func (e *WhisperEngine) SetListener(listener Listener) {
	e.mu.Lock()
	e.listener = listener
	e.mu.Unlock()
}

// SetPrompt задаёт затравку декодера (контекст предыдущего текста).
func (e *WhisperEngine) SetPrompt(prompt string) {
	e.mu.Lock()
	e.prompt = prompt
	e.mu.Unlock()
}

// SetDecodingMode переключает жадный поиск и поиск лучом.
func (e *WhisperEngine) SetDecodingMode(mode whisper.DecodingMode) {
	e.mu.Lock()
	e.mode = mode
	e.mu.Unlock()
}

// SetBailLanguages задаёт список языков досрочного прерывания.
func (e *WhisperEngine) SetBailLanguages(codes []string) {
	e.mu.Lock()
	e.bailLanguages = append([]string(nil), codes...)
	e.mu.Unlock()
}

// SetSuppressNonSpeech включает фильтрацию неречевых аннотаций.
func (e *WhisperEngine) SetSuppressNonSpeech(enabled bool) {
	e.mu.Lock()
	e.suppressNonSpeech = enabled
	e.mu.Unlock()
}

// Recognize запускает распознавание буфера. Первый код подсказки
// выбирает категорию модели; смена категории выгружает текущую модель
// не раньше границы вызова. Повторный вызов во время инференса
// отклоняется с ErrInFlight.
func (e *WhisperEngine) Recognize(samples []float32, languageHint string) error {
	langs := parseLanguageHint(languageHint)
	primary := langs[0]
	cat := models.ResolveCategory(primary)

	if !e.inFlight.CompareAndSwap(false, true) {
		log.Printf("Вызов Recognize отклонён: инференс уже идёт")
		return ErrInFlight
	}

	e.mu.Lock()
	if !e.loaded || cat != e.currentCat {
		eng, err := e.engineFor(cat)
		if err != nil {
			listener := e.listener
			e.mu.Unlock()
			e.inFlight.Store(false)
			log.Printf("Не удалось получить движок категории %v: %v", cat, err)
			if listener != nil {
				listener.OnRecognitionError("модель распознавания недоступна")
			}
			return err
		}
		e.current = eng
		e.currentCat = cat
		e.loaded = true
	}
	eng := e.current
	listener := e.listener
	opts := whisper.Options{
		Prompt:            e.prompt,
		Languages:         langs,
		BailLanguages:     e.bailLanguages,
		Mode:              e.mode,
		SuppressNonSpeech: e.suppressNonSpeech,
	}
	e.mu.Unlock()

	if listener != nil {
		listener.OnRecognitionStarted()
	}

	e.jobs <- func() {
		defer func() {
			e.inFlight.Store(false)
			if listener != nil {
				listener.OnRecognitionFinished()
			}
		}()

		text, err := eng.Infer(samples, opts, func(partial string) {
			if listener != nil {
				listener.OnPartialResult(partial)
			}
		})

		var bailErr *whisper.BailLanguageError
		switch {
		case errors.As(err, &bailErr):
			// Запрещённый язык завершает вызов пустым успешным
			// результатом: политика фильтрации не видна снаружи.
			log.Printf("Инференс прерван: обнаружен язык %q", bailErr.Language)
			e.storeResult("", primary)
			if listener != nil {
				listener.OnRecognitionResult("", primary)
			}
		case errors.Is(err, whisper.ErrCancelled):
			// Отмена завершает вызов молча, без результата и ошибки.
			log.Printf("Инференс отменён")
		case err != nil:
			log.Printf("Ошибка инференса: %v", err)
			if listener != nil {
				listener.OnRecognitionError("распознавание не удалось")
			}
		default:
			e.storeResult(text, primary)
			if listener != nil {
				listener.OnRecognitionResult(text, primary)
			}
		}
	}
	return nil
}

func (e *WhisperEngine) storeResult(text, lang string) {
	e.mu.Lock()
	e.lastResult = &Result{
		Text:         text,
		LanguageCode: lang,
		Timestamp:    time.Now(),
	}
	e.mu.Unlock()
}

// LastResult возвращает итог последнего завершившегося распознавания.
// Отменённые и ошибочные вызовы результата не оставляют.
func (e *WhisperEngine) LastResult() (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastResult == nil {
		return Result{}, false
	}
	return *e.lastResult, true
}

// Cancel отменяет текущий инференс. Вызов без активного инференса
// безопасен и ничего не делает.
func (e *WhisperEngine) Cancel() {
	e.mu.Lock()
	eng := e.current
	e.mu.Unlock()
	if eng != nil {
		eng.Cancel()
	}
}

// IsRecognizing сообщает, выполняется ли инференс прямо сейчас.
func (e *WhisperEngine) IsRecognizing() bool {
	return e.inFlight.Load()
}

// Cleanup останавливает рабочий поток и выгружает модели. Текущий
// инференс отменяется, и Cleanup блокируется до его завершения:
// выгружать модель под работающим декодером нельзя. Повторный вызов
// безопасен.
func (e *WhisperEngine) Cleanup() {
	e.closeOnce.Do(func() {
		e.Cancel()

		// Рабочий поток последовательный: барьерное задание
		// выполняется только после завершения текущего.
		drained := make(chan struct{})
		e.jobs <- func() { close(drained) }
		<-drained

		close(e.quit)
		e.mu.Lock()
		e.current = nil
		e.loaded = false
		e.mu.Unlock()
		if e.cleanup != nil {
			e.cleanup()
		}
	})
}

// Name возвращает название движка.
func (e *WhisperEngine) Name() string {
	return "whisper"
}
