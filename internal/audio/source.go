package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	// ErrNoPermission нет доступа к микрофону (нет входных устройств).
	ErrNoPermission = errors.New("нет доступа к микрофону")
	// ErrDeviceUnavailable устройство не открылось или отказало при чтении.
	ErrDeviceUnavailable = errors.New("аудиоустройство недоступно")
	// ErrBufferTooShort запись короче 200ms.
	ErrBufferTooShort = errors.New("запись слишком короткая")
)

// Source источник PCM16 аудио. Реализация по умолчанию - portaudio,
// в тестах подставляется фейк.
type Source interface {
	// Open открывает устройство с указанным размером кадра в сэмплах.
	Open(frameSize int) error
	// Read блокирующе читает очередной кадр в buf, возвращает число байт.
	// Неположительный результат - жёсткий отказ устройства.
	Read(buf []byte) (int, error)
	// Close останавливает поток и освобождает устройство.
	Close() error
}

// portAudioSource реализация Source поверх portaudio.
type portAudioSource struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
}

// NewPortAudioSource создаёт источник на системном микрофоне по умолчанию.
// portaudio.Initialize должен быть вызван до Open (см. Recorder).
func NewPortAudioSource() Source {
	return &portAudioSource{}
}

func (p *portAudioSource) Open(frameSize int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return nil
	}

	// Initialize/Terminate в portaudio считают ссылки, парный вызов в Close.
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	// Отсутствие входного устройства трактуем как отсутствие доступа:
	// на десктопе нет отдельного API разрешений.
	dev, err := portaudio.DefaultInputDevice()
	if err != nil || dev == nil || dev.MaxInputChannels < Channels {
		portaudio.Terminate()
		return ErrNoPermission
	}

	p.buf = make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(Channels, 0, SampleRate, frameSize, p.buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	p.stream = stream
	return nil
}

func (p *portAudioSource) Read(buf []byte) (int, error) {
	p.mu.Lock()
	stream := p.stream
	p.mu.Unlock()

	if stream == nil {
		return 0, ErrDeviceUnavailable
	}
	if err := stream.Read(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	n := len(p.buf) * 2
	if n > len(buf) {
		n = len(buf)
	}
	for i := 0; i < n/2; i++ {
		buf[i*2] = byte(p.buf[i])
		buf[i*2+1] = byte(p.buf[i] >> 8)
	}
	return n, nil
}

func (p *portAudioSource) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}
	p.stream.Stop()
	err := p.stream.Close()
	p.stream = nil
	portaudio.Terminate()
	return err
}
