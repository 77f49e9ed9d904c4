// Package audio предоставляет запись аудио с микрофона с опциональным
// автостопом по детектору речи.
package audio

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SampleRate - частота дискретизации (требование Whisper).
	SampleRate = 16000
	// Channels - количество каналов (mono).
	Channels = 1
	// BytesPerSample - 16-bit PCM.
	BytesPerSample = 2
	// MaxBytes - максимум 30 секунд записи.
	MaxBytes = SampleRate * BytesPerSample * Channels * 30
	// MinBytes - минимум 200ms, более короткая запись бесполезна.
	MinBytes = SampleRate * BytesPerSample * Channels / 5
)

// Recording завершённая запись. После передачи из сессии записи
// данные неизменяемы.
type Recording struct {
	ID      uuid.UUID
	PCM     []byte // 16-bit little-endian mono PCM, 16kHz
	Started time.Time
	UsedVAD bool
}

// Duration длительность записи.
func (r *Recording) Duration() time.Duration {
	samples := len(r.PCM) / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}

// Samples конвертирует PCM16 в float32 сэмплы [-1, 1] для инференса.
func (r *Recording) Samples() []float32 {
	return pcmToFloat(r.PCM)
}

// pcmToFloat конвертирует 16-bit little-endian PCM в float32 [-1, 1].
func pcmToFloat(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		s := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		samples[i] = float32(s) / 32768.0
	}
	return samples
}
