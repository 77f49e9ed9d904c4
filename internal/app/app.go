// Package app содержит основную логику приложения.
package app

import (
	"errors"
	"log"
	"sync"
	"time"

	"voice-input/internal/audio"
	"voice-input/internal/config"
	"voice-input/internal/models"
	"voice-input/internal/notify"
	"voice-input/internal/speech"
	"voice-input/internal/vad"
	"voice-input/internal/whisper"
)

// MinRecordingDuration - минимальная длительность записи для распознавания.
const MinRecordingDuration = 500 * time.Millisecond

// App связывает запись, распознавание и уведомления. Реализует
// audio.Listener и speech.Listener.
type App struct {
	mu             sync.Mutex
	config         *config.Config
	recorder       *audio.Recorder
	engine         speech.Engine
	notifier       *notify.Notifier
	recordingStart time.Time
	processing     bool // защита от повторных событий
	manualStop     bool // остановку инициировал вызывающий, не автостоп

	onTranscript func(text, lang string)
	onPartial    func(text string)
}

// New создаёт приложение и собирает его компоненты.
func New() (*App, error) {
	cfg := config.New()

	store, err := models.NewStore(cfg.ModelsDir())
	if err != nil {
		return nil, err
	}

	engine, err := speech.NewEngine(store, cfg.VoskModelPath(), cfg.Language())
	if err != nil {
		return nil, err
	}
	log.Printf("Движок распознавания: %s", engine.Name())

	a := &App{
		config:   cfg,
		engine:   engine,
		notifier: notify.New(cfg.NotificationsEnabled()),
	}

	a.recorder = audio.NewRecorder(audio.NewPortAudioSource(), a)
	if v := cfg.VAD(); v.Enabled {
		a.recorder.EnableVAD(vad.Config{
			Mode:              v.Sensitivity,
			SilenceDurationMs: v.SilenceDurationMs,
			SpeechDurationMs:  v.SpeechDurationMs,
		})
	}

	engine.SetListener(a)
	if we, ok := engine.(*speech.WhisperEngine); ok {
		we.SetBailLanguages(cfg.BailLanguages())
		we.SetSuppressNonSpeech(cfg.SuppressNonSpeech())
		if bs := cfg.BeamSize(); bs > 1 {
			we.SetDecodingMode(whisper.BeamSearch(bs))
		}
	}

	return a, nil
}

// OnTranscript устанавливает callback итогового текста.
func (a *App) OnTranscript(fn func(text, lang string)) {
	a.mu.Lock()
	a.onTranscript = fn
	a.mu.Unlock()
}

// OnPartial устанавливает callback промежуточного текста.
func (a *App) OnPartial(fn func(text string)) {
	a.mu.Lock()
	a.onPartial = fn
	a.mu.Unlock()
}

// Toggle начинает запись либо останавливает её и запускает
// распознавание, если запись уже идёт.
func (a *App) Toggle() {
	a.mu.Lock()

	if a.recorder.IsInProgress() {
		a.mu.Unlock()
		a.stopAndRecognize()
		return
	}

	if a.processing {
		a.mu.Unlock()
		log.Printf("Распознавание ещё не завершилось, запись не начата")
		return
	}

	a.recordingStart = time.Now()
	a.mu.Unlock()

	a.notifier.Recording()
	a.recorder.Start()
}

// Cancel отменяет текущую запись или распознавание.
func (a *App) Cancel() {
	if a.recorder.IsInProgress() {
		a.mu.Lock()
		a.manualStop = true
		a.mu.Unlock()
		a.recorder.Stop()
		// Сбрасываем запись из слота, распознавание не запускаем
		a.recorder.Take()
		a.mu.Lock()
		a.manualStop = false
		a.mu.Unlock()
		return
	}
	a.engine.Cancel()
}

// IsRecording сообщает, идёт ли запись.
func (a *App) IsRecording() bool {
	return a.recorder.IsInProgress()
}

// IsRecognizing сообщает, идёт ли распознавание.
func (a *App) IsRecognizing() bool {
	return a.engine.IsRecognizing()
}

func (a *App) stopAndRecognize() {
	a.mu.Lock()
	if a.processing {
		a.mu.Unlock()
		return
	}
	elapsed := time.Since(a.recordingStart)
	a.manualStop = true
	a.mu.Unlock()

	a.recorder.Stop()

	a.mu.Lock()
	a.manualStop = false
	a.mu.Unlock()

	// Короткое нажатие отменяет запись без распознавания
	if elapsed < MinRecordingDuration {
		a.recorder.Take()
		return
	}

	a.recognizeTaken()
}

// recognizeTaken забирает запись из слота и отдаёт её движку.
// Вызывается и после ручной остановки, и после автостопа по тишине.
func (a *App) recognizeTaken() {
	rec, ok := a.recorder.Take()
	if !ok {
		return
	}

	if dir := a.config.DumpDir(); dir != "" {
		if path, err := audio.DumpWAV(dir, rec); err != nil {
			log.Printf("Не удалось сохранить WAV-дамп: %v", err)
		} else {
			log.Printf("WAV-дамп записи: %s", path)
		}
	}

	a.mu.Lock()
	a.processing = true
	a.mu.Unlock()

	a.notifier.Processing()
	if err := a.engine.Recognize(rec.Samples(), a.config.Language()); err != nil {
		a.mu.Lock()
		a.processing = false
		a.mu.Unlock()
		if !errors.Is(err, speech.ErrInFlight) {
			a.notifier.Error("распознавание не запустилось")
		}
	}
}

// OnRecordingStarted - audio.Listener.
func (a *App) OnRecordingStarted() {
	log.Printf("Запись началась, длительность %.1fс от старта",
		time.Since(a.recordingStart).Seconds())
}

// OnRecordingDone - audio.Listener. Вызывается и при ручной остановке,
// и при автостопе детектора тишины.
func (a *App) OnRecordingDone() {
	a.mu.Lock()
	manual := a.manualStop
	a.mu.Unlock()
	if manual {
		// Запись заберёт инициатор остановки
		return
	}
	// Автостоп по тишине: запись ждёт в слоте
	a.recognizeTaken()
}

// OnRecordingError - audio.Listener.
func (a *App) OnRecordingError(err error) {
	if errors.Is(err, audio.ErrBufferTooShort) {
		log.Printf("Запись слишком короткая, распознавание пропущено")
		a.notifier.Empty()
		return
	}
	log.Printf("Ошибка записи: %v", err)
	a.notifier.Error("ошибка записи с микрофона")
}

// OnPermissionError - audio.Listener.
func (a *App) OnPermissionError() {
	log.Printf("Нет доступа к микрофону")
	a.notifier.Error("нет доступа к микрофону")
}

// OnRecognitionStarted - speech.Listener.
func (a *App) OnRecognitionStarted() {
	log.Printf("Распознавание началось")
}

// OnPartialResult - speech.Listener.
func (a *App) OnPartialResult(text string) {
	a.mu.Lock()
	fn := a.onPartial
	a.mu.Unlock()
	if fn != nil {
		fn(text)
	}
}

// OnRecognitionResult - speech.Listener.
func (a *App) OnRecognitionResult(text, lang string) {
	if text == "" {
		a.notifier.Empty()
	} else {
		a.notifier.Success(text)
	}

	a.mu.Lock()
	fn := a.onTranscript
	a.mu.Unlock()
	if fn != nil {
		fn(text, lang)
	}
}

// OnRecognitionError - speech.Listener.
func (a *App) OnRecognitionError(msg string) {
	a.notifier.Error(msg)
}

// OnRecognitionFinished - speech.Listener.
func (a *App) OnRecognitionFinished() {
	a.mu.Lock()
	a.processing = false
	a.mu.Unlock()
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.engine != nil {
		a.engine.Cleanup()
	}
}
