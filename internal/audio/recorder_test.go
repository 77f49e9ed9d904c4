package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-input/internal/vad"
)

// fakeSource детерминированный источник PCM для тестов.
type fakeSource struct {
	mu           sync.Mutex
	openErr      error
	maxReads     int // после этого числа чтений - жёсткий отказ (0 байт)
	readDelay    time.Duration
	reads        int
	closed       bool
	closeEntered chan struct{} // закрывается при первом входе в Close
	closeBlock   chan struct{} // если не nil, Close ждёт его закрытия
}

func (f *fakeSource) Open(frameSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	f.closed = false
	f.reads = 0
	return nil
}

func (f *fakeSource) Read(buf []byte) (int, error) {
	if f.readDelay > 0 {
		time.Sleep(f.readDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.maxReads > 0 && f.reads >= f.maxReads {
		return 0, errors.New("устройство отказало")
	}
	f.reads++
	for i := 0; i < vad.FrameBytes; i++ {
		buf[i] = byte(i)
	}
	return vad.FrameBytes, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	entered := f.closeEntered
	block := f.closeBlock
	f.closeEntered = nil
	f.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSource) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeListener собирает уведомления в канал.
type fakeListener struct {
	events chan string
}

func newFakeListener() *fakeListener {
	return &fakeListener{events: make(chan string, 64)}
}

func (l *fakeListener) OnRecordingStarted()        { l.events <- "started" }
func (l *fakeListener) OnRecordingDone()           { l.events <- "done" }
func (l *fakeListener) OnRecordingError(err error) { l.events <- "error:" + err.Error() }
func (l *fakeListener) OnPermissionError()         { l.events <- "permission" }

func (l *fakeListener) wait(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-l.events:
			if ev == want {
				return
			}
		case <-deadline:
			t.Fatalf("не дождались события %q", want)
		}
	}
}

// scriptedGate возвращает заданную последовательность вердиктов.
type scriptedGate struct {
	verdicts []bool
	i        int
	closed   bool
}

func (g *scriptedGate) IsSpeech(frame []byte) (bool, error) {
	v := g.verdicts[g.i]
	if g.i < len(g.verdicts)-1 {
		g.i++
	}
	return v, nil
}

func (g *scriptedGate) Close() { g.closed = true }

func TestRecorderTooShortReportsError(t *testing.T) {
	src := &fakeSource{maxReads: 3} // 3 кадра = 2880 байт < 6400
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.Start()
	lst.wait(t, "error:"+ErrBufferTooShort.Error())

	r, ok := rec.Take()
	require.True(t, ok)
	assert.Len(t, r.PCM, 3*vad.FrameBytes)
}

func TestRecorderStopsAtThirtySecondCap(t *testing.T) {
	src := &fakeSource{} // без ограничений - остановит только лимит
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.Start()
	lst.wait(t, "done")

	assert.False(t, rec.IsInProgress())
	r, ok := rec.Take()
	require.True(t, ok)
	assert.Len(t, r.PCM, MaxBytes)
	assert.Equal(t, 30*time.Second, r.Duration())
}

func TestRecorderStopBlocksUntilDeviceReleased(t *testing.T) {
	src := &fakeSource{readDelay: time.Millisecond}
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.Start()
	lst.wait(t, "started")
	time.Sleep(50 * time.Millisecond) // набираем больше 200ms аудио (кадр 30ms)

	rec.Stop()
	assert.True(t, src.isClosed(), "Stop вернулся до освобождения устройства")
	assert.False(t, rec.IsInProgress())
}

func TestRecorderStartDuringTeardownRunsNewSession(t *testing.T) {
	closeEntered := make(chan struct{})
	closeBlock := make(chan struct{})
	src := &fakeSource{
		readDelay:    time.Millisecond,
		closeEntered: closeEntered,
		closeBlock:   closeBlock,
	}
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.Start()
	lst.wait(t, "started")
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		rec.Stop()
		close(stopped)
	}()

	// Рабочий поток внутри teardown первой сессии, устройство ещё
	// не освобождено. Start, принятый в этом окне, создаёт новую
	// сессию, и teardown не должен затереть её состояние.
	<-closeEntered
	rec.Start()
	close(closeBlock)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop первой сессии не вернулся")
	}

	lst.wait(t, "started")
	assert.True(t, rec.IsInProgress(), "флаг новой сессии затёрт teardown предыдущей")

	time.Sleep(50 * time.Millisecond)
	rec.Stop()
	lst.wait(t, "done")

	r, ok := rec.Take()
	require.True(t, ok)
	assert.Greater(t, len(r.PCM), MinBytes)
}

func TestRecorderHandoffYieldsRecordingOnce(t *testing.T) {
	src := &fakeSource{maxReads: 10}
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.Start()
	lst.wait(t, "done")

	_, ok := rec.Take()
	require.True(t, ok)
	_, ok = rec.Take()
	assert.False(t, ok, "запись выдана дважды")
}

func TestRecorderVADAutoStop(t *testing.T) {
	src := &fakeSource{}
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	// 10 кадров речи, затем тишина: кромка речь->тишина останавливает сессию.
	gate := &scriptedGate{verdicts: append(speechRun(10), false)}
	rec.gateFactory = func(cfg vad.Config) (speechGate, error) {
		return gate, nil
	}
	rec.EnableVAD(vad.DefaultConfig())

	rec.Start()
	lst.wait(t, "done")

	r, ok := rec.Take()
	require.True(t, ok)
	assert.True(t, r.UsedVAD)
	assert.Len(t, r.PCM, 11*vad.FrameBytes)
	assert.True(t, gate.closed, "VAD не освобождён после сессии")
}

func speechRun(n int) []bool {
	run := make([]bool, n)
	for i := range run {
		run[i] = true
	}
	return run
}

func TestRecorderVADSilenceOnlyNeverAutoStops(t *testing.T) {
	// Запись без речи не должна остановиться по VAD - её остановит лимит.
	src := &fakeSource{}
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.gateFactory = func(cfg vad.Config) (speechGate, error) {
		return &scriptedGate{verdicts: []bool{false}}, nil
	}
	rec.EnableVAD(vad.DefaultConfig())

	rec.Start()
	lst.wait(t, "done")

	r, ok := rec.Take()
	require.True(t, ok)
	assert.Len(t, r.PCM, MaxBytes)
}

func TestRecorderPermissionError(t *testing.T) {
	src := &fakeSource{openErr: ErrNoPermission}
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.Start()
	lst.wait(t, "permission")
	assert.False(t, rec.IsInProgress())
}

func TestRecorderDeviceOpenFailure(t *testing.T) {
	src := &fakeSource{openErr: ErrDeviceUnavailable}
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.Start()
	lst.wait(t, "error:"+ErrDeviceUnavailable.Error())
}

func TestRecorderDoubleStartIsNoop(t *testing.T) {
	src := &fakeSource{readDelay: time.Millisecond}
	lst := newFakeListener()
	rec := NewRecorder(src, lst)
	defer rec.Close()

	rec.Start()
	lst.wait(t, "started")
	rec.Start() // уже идёт - no-op
	time.Sleep(30 * time.Millisecond)
	rec.Stop()

	// Ровно одно событие начала за сессию
	started := 0
	for {
		select {
		case ev := <-lst.events:
			if ev == "started" {
				started++
			}
			continue
		default:
		}
		break
	}
	assert.Zero(t, started, "повторное событие начала записи")
}

func TestPCMToFloat(t *testing.T) {
	// 0x7FFF -> ~1.0, 0x8000 -> -1.0, 0 -> 0
	pcm := []byte{0xFF, 0x7F, 0x00, 0x80, 0x00, 0x00}
	samples := pcmToFloat(pcm)
	require.Len(t, samples, 3)
	assert.InDelta(t, 1.0, samples[0], 0.001)
	assert.InDelta(t, -1.0, samples[1], 0.001)
	assert.Zero(t, samples[2])
}

func TestDumpWAV(t *testing.T) {
	dir := t.TempDir()
	r := &Recording{PCM: make([]byte, SampleRate*BytesPerSample)} // 1 секунда
	path, err := DumpWAV(dir, r)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
