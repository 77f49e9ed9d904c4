// Package vad предоставляет детектор голосовой активности на базе WebRTC VAD.
package vad

import (
	"fmt"

	webrtcvad "github.com/baabaaox/go-webrtcvad"
)

const (
	// SampleRate - частота дискретизации (WebRTC VAD: 8000/16000/32000/48000).
	SampleRate = 16000
	// FrameSize - размер кадра в сэмплах (30ms при 16kHz).
	FrameSize = 480
	// FrameBytes - размер кадра в байтах (16-bit PCM).
	FrameBytes = FrameSize * 2
	// frameDurationMs - длительность одного кадра.
	frameDurationMs = FrameSize * 1000 / SampleRate
)

// Config настройки детектора.
type Config struct {
	// Mode - чувствительность классификатора (0 - наименее агрессивный, 3 - наиболее).
	Mode int
	// SilenceDurationMs - минимальная длительность тишины до вердикта "тишина".
	SilenceDurationMs int
	// SpeechDurationMs - минимальная длительность речи до вердикта "речь".
	SpeechDurationMs int
}

// DefaultConfig настройки по умолчанию.
func DefaultConfig() Config {
	return Config{
		Mode:              2,
		SilenceDurationMs: 1500,
		SpeechDurationMs:  300,
	}
}

func (c Config) validate() error {
	if c.Mode < 0 || c.Mode > 3 {
		return fmt.Errorf("недопустимый режим VAD: %d", c.Mode)
	}
	if c.SilenceDurationMs < 0 || c.SpeechDurationMs < 0 {
		return fmt.Errorf("отрицательная длительность в настройках VAD")
	}
	return nil
}

// classifyFunc классифицирует один кадр PCM16: речь или нет.
type classifyFunc func(frame []byte) (bool, error)

// Gate детектор речи с гистерезисом поверх покадрового классификатора.
// Владеет нативным ресурсом WebRTC VAD - обязателен Close.
type Gate struct {
	cfg      Config
	classify classifyFunc
	release  func()

	// Гистерезис: вердикт меняется только после подряд идущих кадров
	// суммарной длительностью не меньше порога.
	speaking      bool
	speechFrames  int
	silenceFrames int
	speechNeed    int
	silenceNeed   int
}

// New создаёт Gate с нативным WebRTC VAD классификатором.
func New(cfg Config) (*Gate, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	inst := webrtcvad.Create()
	if inst == nil {
		return nil, fmt.Errorf("не удалось создать WebRTC VAD")
	}
	if err := webrtcvad.Init(inst); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("не удалось инициализировать WebRTC VAD: %w", err)
	}
	if err := webrtcvad.SetMode(inst, cfg.Mode); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("не удалось установить режим WebRTC VAD: %w", err)
	}

	classify := func(frame []byte) (bool, error) {
		return webrtcvad.Process(inst, SampleRate, frame, FrameSize)
	}
	release := func() { webrtcvad.Free(inst) }

	return newGate(cfg, classify, release), nil
}

// newGate собирает Gate из готового классификатора (для тестов).
func newGate(cfg Config, classify classifyFunc, release func()) *Gate {
	framesFor := func(ms int) int {
		n := (ms + frameDurationMs - 1) / frameDurationMs
		if n < 1 {
			n = 1
		}
		return n
	}
	return &Gate{
		cfg:         cfg,
		classify:    classify,
		release:     release,
		speechNeed:  framesFor(cfg.SpeechDurationMs),
		silenceNeed: framesFor(cfg.SilenceDurationMs),
	}
}

// IsSpeech классифицирует один кадр и возвращает сглаженный вердикт.
// Кадр обязан быть ровно FrameBytes байт.
func (g *Gate) IsSpeech(frame []byte) (bool, error) {
	if g.classify == nil {
		return false, fmt.Errorf("VAD уже освобождён")
	}
	if len(frame) != FrameBytes {
		return false, fmt.Errorf("неверный размер кадра VAD: %d байт, ожидается %d", len(frame), FrameBytes)
	}

	raw, err := g.classify(frame)
	if err != nil {
		return g.speaking, fmt.Errorf("ошибка классификатора VAD: %w", err)
	}

	if raw {
		g.speechFrames++
		g.silenceFrames = 0
		if !g.speaking && g.speechFrames >= g.speechNeed {
			g.speaking = true
		}
	} else {
		g.silenceFrames++
		g.speechFrames = 0
		if g.speaking && g.silenceFrames >= g.silenceNeed {
			g.speaking = false
		}
	}

	return g.speaking, nil
}

// Reset сбрасывает состояние гистерезиса.
func (g *Gate) Reset() {
	g.speaking = false
	g.speechFrames = 0
	g.silenceFrames = 0
}

// Close освобождает нативный ресурс. Повторный вызов безопасен.
func (g *Gate) Close() {
	if g.release != nil {
		g.release()
		g.release = nil
	}
	g.classify = nil
}
