// Package whisper - мост к нативному движку whisper.cpp: загрузка моделей,
// инференс с языковыми ограничениями, частичные результаты и кооперативная
// отмена.
package whisper

import (
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"voice-input/internal/models"
)

var (
	// ErrCancelled инференс отменён флагом отмены.
	ErrCancelled = errors.New("инференс отменён")
	// ErrBusy на движке уже выполняется инференс.
	ErrBusy = errors.New("инференс уже выполняется")
	// ErrClosed движок уже закрыт.
	ErrClosed = errors.New("движок закрыт")
)

// BailLanguageError распознанный язык входит в запрещённый список.
// Результат отбрасывается независимо от объёма уже декодированного текста.
type BailLanguageError struct {
	Language string
}

func (e *BailLanguageError) Error() string {
	return fmt.Sprintf("обнаружен запрещённый язык: %s", e.Language)
}

// DecodingMode режим декодирования. Greedy - жадный (best-of 1),
// положительное значение - ширина beam search.
type DecodingMode int

// Greedy жадное декодирование.
const Greedy DecodingMode = 0

// BeamSearch возвращает режим beam search с указанной шириной.
func BeamSearch(width int) DecodingMode {
	if width < 1 {
		width = 1
	}
	return DecodingMode(width)
}

// Options параметры одного вызова инференса.
type Options struct {
	// Prompt - начальный промпт (глоссарий, контекст).
	Prompt string
	// Languages - разрешённые языки (см. planLanguages). Пусто - автоопределение.
	Languages []string
	// BailLanguages - запрещённые языки: их обнаружение отменяет результат.
	BailLanguages []string
	// Mode - режим декодирования.
	Mode DecodingMode
	// SuppressNonSpeech - подавлять неречевые аннотации в выводе.
	SuppressNonSpeech bool
}

const (
	// maxTokensPerSegment лимит токенов на сегмент (поведение исходного моста).
	maxTokensPerSegment = 256
	// timestampThresholdSamples метки времени включаются только для
	// аудио длиннее 25 секунд.
	timestampThresholdSamples = whisper.SampleRate * 25
)

// Engine открытая нативная модель. На одном движке выполняется не более
// одного инференса одновременно; Close освобождает нативный ресурс.
type Engine struct {
	mu     sync.Mutex // охраняет указатель модели
	runMu  sync.Mutex // удерживается на всё время Infer, Close ждёт его
	model  whisper.Model
	busy   atomic.Bool
	cancel atomic.Bool
}

// Open загружает модель из файла.
func Open(path string) (*Engine, error) {
	model, err := whisper.New(path)
	if err != nil {
		return nil, fmt.Errorf("не удалось загрузить модель %s: %w", path, err)
	}
	return &Engine{model: model}, nil
}

// Cancel взводит флаг отмены. Флаг кооперативный: декодер проверяет его
// на границах шагов, остановка не мгновенная. Повторные вызовы - no-op.
func (e *Engine) Cancel() {
	e.cancel.Store(true)
}

// Close взводит флаг отмены, дожидается завершения текущего инференса
// и только затем освобождает нативный ресурс: освобождение модели под
// работающим декодером недопустимо. Повторный вызов безопасен,
// последующие Infer завершаются ErrClosed.
func (e *Engine) Close() error {
	e.cancel.Store(true)

	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}

// Infer выполняет инференс. Возвращает итоговый текст либо один из
// помеченных исходов: ErrCancelled, *BailLanguageError, ошибка инференса.
// onPartial (может быть nil) вызывается синхронно с потока инференса
// с накопленным текстом после каждого завершённого сегмента.
func (e *Engine) Infer(samples []float32, opts Options, onPartial func(string)) (string, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer e.busy.Store(false)

	e.runMu.Lock()
	defer e.runMu.Unlock()

	e.mu.Lock()
	model := e.model
	e.mu.Unlock()
	if model == nil {
		return "", ErrClosed
	}

	e.cancel.Store(false)

	langs := normalizeAll(opts.Languages)
	bail := normalizeAll(opts.BailLanguages)
	plan := planLanguages(langs)

	lock := plan.lock
	if lock == "" {
		lock = "auto"
	}

	text, detected, err := e.runPass(model, samples, opts, lock, onPartial)
	if err != nil {
		return "", err
	}

	// Рестрикция автоопределения: нативный мост ограничивал декодер
	// списком allowed_langs, биндинги такого параметра не дают. Если
	// определённый язык вне списка - повторный проход со строгой
	// фиксацией приоритетной подсказки.
	if len(plan.allowed) > 0 && !containsLang(plan.allowed, detected) {
		log.Printf("Язык %q вне разрешённого списка, повторный проход с фиксацией %q", detected, plan.hint)
		text, detected, err = e.runPass(model, samples, opts, plan.hint, onPartial)
		if err != nil {
			return "", err
		}
	}

	if containsLang(bail, detected) {
		return "", &BailLanguageError{Language: detected}
	}

	return text, nil
}

// runPass один проход декодера с заданной языковой установкой
// ("auto" либо конкретный код).
func (e *Engine) runPass(model whisper.Model, samples []float32, opts Options, lang string, onPartial func(string)) (string, string, error) {
	ctx, err := model.NewContext()
	if err != nil {
		return "", "", fmt.Errorf("не удалось создать контекст: %w", err)
	}

	// Только транскрипция, перевод всегда выключен.
	ctx.SetTranslate(false)

	// Английская модель не мультиязычная: установка языка ей не нужна
	// и биндингами запрещена.
	if model.IsMultilingual() {
		if err := ctx.SetLanguage(lang); err != nil {
			return "", "", fmt.Errorf("недопустимый язык %q: %w", lang, err)
		}
	}

	if opts.Prompt != "" {
		ctx.SetInitialPrompt(opts.Prompt)
	}
	if w := int(opts.Mode); w > 1 {
		ctx.SetBeamSize(w)
	}
	ctx.SetThreads(saneThreads())
	ctx.SetMaxTokensPerSegment(maxTokensPerSegment)
	ctx.SetAudioCtx(audioCtxFor(len(samples)))
	if len(samples) >= timestampThresholdSamples {
		ctx.SetTokenTimestamps(true)
	}

	var parts []string
	segmentCb := func(seg whisper.Segment) {
		parts = append(parts, seg.Text)
		if onPartial != nil {
			onPartial(strings.TrimSpace(strings.Join(parts, "")))
		}
	}
	// Флаг отмены наблюдается на границе окна энкодера.
	encoderCb := func() bool {
		return !e.cancel.Load()
	}

	err = ctx.Process(samples, encoderCb, segmentCb, nil)
	if e.cancel.Load() {
		return "", "", ErrCancelled
	}
	if err != nil {
		return "", "", fmt.Errorf("ошибка инференса: %w", err)
	}

	var segs []string
	for {
		seg, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", "", fmt.Errorf("ошибка чтения сегментов: %w", err)
		}
		segs = append(segs, seg.Text)
	}

	detected := "en"
	if model.IsMultilingual() {
		detected = models.NormalizeLanguage(ctx.DetectedLanguage())
	}

	return assemble(segs, opts.SuppressNonSpeech), detected, nil
}

// nonSpeechRe неречевые аннотации декодера: [MUSIC], (applause), ноты.
var nonSpeechRe = regexp.MustCompile(`\s*(\[[^\]\n]*\]|\([^)\n]*\)|♪+)`)

// assemble собирает итоговый текст из сегментов. Последний сегмент из
// одного слова-заполнителя "you" отбрасывается - известный шумовой
// артефакт модели на тишине.
func assemble(segs []string, suppressNonSpeech bool) string {
	if n := len(segs); n > 0 && strings.TrimSpace(segs[n-1]) == "you" {
		segs = segs[:n-1]
	}
	out := strings.Join(segs, "")
	if suppressNonSpeech {
		out = nonSpeechRe.ReplaceAllString(out, "")
	}
	return strings.TrimSpace(out)
}

// normalizeAll нормализует коды языков, отбрасывая пустые.
func normalizeAll(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if n := models.NormalizeLanguage(c); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// audioCtxFor размер аудиоконтекста по числу сэмплов (формула исходного
// моста: укороченный контекст для коротких записей ускоряет декодер).
func audioCtxFor(numSamples int) uint {
	n := numSamples/320 + 32
	if numSamples%320 != 0 {
		n++
	}
	if n < 160 {
		n = 160
	}
	if n > 1500 {
		n = 1500
	}
	return uint(n)
}

func saneThreads() uint {
	n := runtime.NumCPU()
	if n < 2 || n > 16 {
		n = 6
	}
	return uint(n)
}
