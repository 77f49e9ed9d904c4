package audio

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"voice-input/internal/vad"
)

// visualizationInterval кадры для визуализации шлём не чаще ~30fps.
const visualizationInterval = 33 * time.Millisecond

// Listener получает уведомления о ходе записи.
type Listener interface {
	OnRecordingStarted()
	OnRecordingDone()
	OnRecordingError(err error)
	OnPermissionError()
}

// FrameSink принимает последний кадр в float32 [-1, 1] для визуализации.
// Вызывается с потока записи, не должен блокировать.
type FrameSink func(samples []float32)

// speechGate сглаженный детектор речи (см. vad.Gate).
type speechGate interface {
	IsSpeech(frame []byte) (bool, error)
	Close()
}

// Recorder записывает аудио с микрофона. Один долгоживущий рабочий
// поток ждёт сигнала Start, пишет сессию и публикует готовую запись
// в однослотовый канал; владение буфером переходит получателю Take.
type Recorder struct {
	source   Source
	listener Listener

	mu          sync.Mutex
	sink        FrameSink
	vadEnabled  bool
	vadCfg      vad.Config
	sessionDone chan struct{}

	gateFactory func(vad.Config) (speechGate, error)

	inProgress atomic.Bool
	startCh    chan struct{}
	slot       chan *Recording
	quit       chan struct{}
	closeOnce  sync.Once
}

// NewRecorder создаёт Recorder и запускает рабочий поток.
func NewRecorder(source Source, listener Listener) *Recorder {
	r := &Recorder{
		source:   source,
		listener: listener,
		startCh:  make(chan struct{}, 1),
		slot:     make(chan *Recording, 1),
		quit:     make(chan struct{}),
		gateFactory: func(cfg vad.Config) (speechGate, error) {
			return vad.New(cfg)
		},
	}
	go r.recordLoop()
	return r
}

// EnableVAD включает автостоп по детектору речи для следующих сессий.
func (r *Recorder) EnableVAD(cfg vad.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vadEnabled = true
	r.vadCfg = cfg
}

// DisableVAD выключает детектор речи.
func (r *Recorder) DisableVAD() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vadEnabled = false
}

// SetFrameSink устанавливает приёмник кадров для визуализации.
func (r *Recorder) SetFrameSink(sink FrameSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// Start начинает сессию записи. Если запись уже идёт - no-op.
func (r *Recorder) Start() {
	if !r.inProgress.CompareAndSwap(false, true) {
		log.Printf("Запись уже идёт, Start проигнорирован")
		return
	}

	r.mu.Lock()
	r.sessionDone = make(chan struct{})
	r.mu.Unlock()

	select {
	case r.startCh <- struct{}{}:
	default:
	}
}

// Stop запрашивает остановку и блокирует вызывающего до тех пор,
// пока рабочий поток не освободит устройство и не опубликует запись.
func (r *Recorder) Stop() {
	r.mu.Lock()
	done := r.sessionDone
	r.mu.Unlock()

	r.inProgress.Store(false)
	if done != nil {
		<-done
	}
}

// IsInProgress неблокирующий снимок состояния записи.
func (r *Recorder) IsInProgress() bool {
	return r.inProgress.Load()
}

// Take забирает готовую запись из слота передачи. Владение буфером
// переходит вызывающему. Слот читается после сигнала о завершении.
func (r *Recorder) Take() (*Recording, bool) {
	select {
	case rec := <-r.slot:
		return rec, true
	default:
		return nil, false
	}
}

// Close останавливает рабочий поток и освобождает ресурсы.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		r.Stop()
		close(r.quit)
	})
}

func (r *Recorder) recordLoop() {
	for {
		select {
		case <-r.quit:
			return
		case <-r.startCh:
		}

		r.mu.Lock()
		done := r.sessionDone
		r.mu.Unlock()

		r.recordAudio()

		// Сигнал о завершении строго после освобождения устройства.
		// Состояние сбрасывается только для отработанной сессии:
		// Start, принятый во время teardown, уже создал следующую,
		// и её флаг затирать нельзя.
		r.mu.Lock()
		if r.sessionDone == done {
			r.sessionDone = nil
			r.inProgress.Store(false)
		}
		r.mu.Unlock()
		if done != nil {
			close(done)
		}
	}
}

// recordAudio выполняет одну сессию записи. Все пути выхода проходят
// общий teardown: устройство и VAD освобождаются в defer.
func (r *Recorder) recordAudio() {
	started := time.Now()

	r.mu.Lock()
	sink := r.sink
	vadEnabled := r.vadEnabled
	vadCfg := r.vadCfg
	r.mu.Unlock()

	var gate speechGate
	if vadEnabled {
		g, err := r.gateFactory(vadCfg)
		if err != nil {
			log.Printf("Не удалось создать VAD, запись без автостопа: %v", err)
		} else {
			gate = g
		}
	}
	defer func() {
		if gate != nil {
			gate.Close()
		}
		r.source.Close()
	}()

	if err := r.source.Open(vad.FrameSize); err != nil {
		if errors.Is(err, ErrNoPermission) {
			log.Printf("Нет разрешения на запись аудио")
			r.listener.OnPermissionError()
		} else {
			log.Printf("Ошибка открытия устройства: %v", err)
			r.listener.OnRecordingError(err)
		}
		return
	}

	pcm := make([]byte, 0, MaxBytes)
	frame := make([]byte, vad.FrameBytes)
	notified := false
	speechSeen := false
	var lastViz time.Time

	for r.inProgress.Load() && len(pcm) < MaxBytes {
		n, err := r.source.Read(frame)
		if err != nil || n <= 0 {
			// Жёсткий отказ устройства прерывает цикл, teardown общий.
			log.Printf("Ошибка чтения аудио (n=%d): %v", n, err)
			break
		}
		pcm = append(pcm, frame[:n]...)

		if sink != nil {
			if now := time.Now(); now.Sub(lastViz) > visualizationInterval {
				sink(pcmToFloat(frame[:n]))
				lastViz = now
			}
		}

		if gate != nil {
			if n != vad.FrameBytes {
				continue
			}
			speaking, verr := gate.IsSpeech(frame)
			if verr != nil {
				log.Printf("Ошибка VAD: %v", verr)
				continue
			}
			if speaking {
				if !speechSeen {
					log.Printf("VAD: речь обнаружена, запись идёт")
					r.listener.OnRecordingStarted()
					speechSeen = true
				}
			} else if speechSeen {
				// Единственная кромка, останавливающая запись:
				// речь -> тишина, и только после первой речи.
				log.Printf("VAD: тишина после речи, автостоп")
				r.inProgress.Store(false)
			}
		} else if !notified {
			r.listener.OnRecordingStarted()
			notified = true
		}
	}

	rec := &Recording{
		ID:      uuid.New(),
		PCM:     pcm,
		Started: started,
		UsedVAD: gate != nil,
	}

	// Однослотовая передача: невостребованная предыдущая запись вытесняется.
	select {
	case <-r.slot:
	default:
	}
	r.slot <- rec

	log.Printf("Записано %d байт (%.1fs), сессия %s", len(rec.PCM), rec.Duration().Seconds(), rec.ID)

	if len(pcm) > MinBytes {
		r.listener.OnRecordingDone()
	} else {
		r.listener.OnRecordingError(ErrBufferTooShort)
	}
}
