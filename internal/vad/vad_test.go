package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClassifier возвращает заранее заданную последовательность вердиктов.
func fixedClassifier(verdicts []bool) classifyFunc {
	i := 0
	return func(frame []byte) (bool, error) {
		v := verdicts[i%len(verdicts)]
		i++
		return v, nil
	}
}

func frame() []byte {
	return make([]byte, FrameBytes)
}

func TestGateWrongFrameSize(t *testing.T) {
	g := newGate(DefaultConfig(), fixedClassifier([]bool{true}), nil)
	defer g.Close()

	_, err := g.IsSpeech(make([]byte, FrameBytes-2))
	assert.Error(t, err)
	_, err = g.IsSpeech(make([]byte, FrameBytes+2))
	assert.Error(t, err)
}

func TestGateRisingEdgeNeedsSpeechDuration(t *testing.T) {
	// 90ms речи = 3 кадра по 30ms
	cfg := Config{Mode: 2, SpeechDurationMs: 90, SilenceDurationMs: 90}
	g := newGate(cfg, fixedClassifier([]bool{true}), nil)
	defer g.Close()

	for i := 0; i < 2; i++ {
		speaking, err := g.IsSpeech(frame())
		require.NoError(t, err)
		assert.False(t, speaking, "кадр %d не должен дать вердикт речи", i)
	}
	speaking, err := g.IsSpeech(frame())
	require.NoError(t, err)
	assert.True(t, speaking)
}

func TestGateFallingEdgeNeedsSilenceDuration(t *testing.T) {
	cfg := Config{Mode: 2, SpeechDurationMs: 30, SilenceDurationMs: 60}
	verdicts := []bool{true, false, false, false}
	g := newGate(cfg, fixedClassifier(verdicts), nil)
	defer g.Close()

	speaking, err := g.IsSpeech(frame())
	require.NoError(t, err)
	require.True(t, speaking)

	// Один кадр тишины - вердикт ещё "речь"
	speaking, err = g.IsSpeech(frame())
	require.NoError(t, err)
	assert.True(t, speaking)

	// Второй кадр тишины - порог 60ms достигнут
	speaking, err = g.IsSpeech(frame())
	require.NoError(t, err)
	assert.False(t, speaking)
}

func TestGateShortNoiseDoesNotFlip(t *testing.T) {
	cfg := Config{Mode: 2, SpeechDurationMs: 30, SilenceDurationMs: 90}
	// речь, короткий провал, снова речь
	verdicts := []bool{true, false, true, false, true}
	g := newGate(cfg, fixedClassifier(verdicts), nil)
	defer g.Close()

	for i := 0; i < len(verdicts); i++ {
		speaking, err := g.IsSpeech(frame())
		require.NoError(t, err)
		assert.True(t, speaking, "кадр %d", i)
	}
}

func TestGateReset(t *testing.T) {
	cfg := Config{Mode: 2, SpeechDurationMs: 30, SilenceDurationMs: 3000}
	g := newGate(cfg, fixedClassifier([]bool{true}), nil)
	defer g.Close()

	speaking, err := g.IsSpeech(frame())
	require.NoError(t, err)
	require.True(t, speaking)

	g.Reset()
	assert.False(t, g.speaking)
}

func TestGateClosedIsError(t *testing.T) {
	released := false
	g := newGate(DefaultConfig(), fixedClassifier([]bool{true}), func() { released = true })
	g.Close()
	assert.True(t, released)

	_, err := g.IsSpeech(frame())
	assert.Error(t, err)

	// Повторный Close не падает
	g.Close()
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config{Mode: 5})
	assert.Error(t, err)
	_, err = New(Config{Mode: 1, SilenceDurationMs: -1})
	assert.Error(t, err)
}
