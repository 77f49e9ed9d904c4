package whisper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-input/internal/models"
)

func TestPlanLanguagesEmpty(t *testing.T) {
	plan := planLanguages(nil)
	assert.Empty(t, plan.lock)
	assert.Empty(t, plan.allowed)
}

func TestPlanLanguagesSingleIsStrictLock(t *testing.T) {
	plan := planLanguages([]string{"en"})
	assert.Equal(t, "en", plan.lock)
	assert.Empty(t, plan.allowed)
}

func TestPlanLanguagesDuplicatePairIsStrictLock(t *testing.T) {
	// Пара одинаковых кодов - идиома строгой фиксации
	plan := planLanguages([]string{"en", "en"})
	assert.Equal(t, "en", plan.lock)
	assert.Empty(t, plan.allowed)
}

func TestPlanLanguagesDuplicateFirstAmongMany(t *testing.T) {
	// Дубль первого при трёх и более кодах - приоритетная подсказка,
	// рестрикция по оставшемуся списку сохраняется
	plan := planLanguages([]string{"de", "de", "fr", "it"})
	assert.Empty(t, plan.lock)
	assert.Equal(t, "de", plan.hint)
	assert.Equal(t, []string{"de", "fr", "it"}, plan.allowed)
}

func TestPlanLanguagesDistinctListIsRestrictedAutoDetect(t *testing.T) {
	plan := planLanguages([]string{"es", "fr"})
	assert.Empty(t, plan.lock)
	assert.Equal(t, "es", plan.hint)
	assert.Equal(t, []string{"es", "fr"}, plan.allowed)
}

func TestNormalizeAll(t *testing.T) {
	assert.Equal(t, []string{"he", "zh", "en"}, normalizeAll([]string{"iw", "zh_CN", "", "en"}))
}

func TestAudioCtxFor(t *testing.T) {
	// 1 секунда: 16000/320+32 = 82 -> минимум 160
	assert.Equal(t, uint(160), audioCtxFor(16000))
	// 30 секунд: 480000/320+32 = 1532 -> потолок 1500
	assert.Equal(t, uint(1500), audioCtxFor(480000))
	// 10 секунд: 160000/320+32 = 532
	assert.Equal(t, uint(532), audioCtxFor(160000))
}

func TestAssembleDropsTrailingArtifact(t *testing.T) {
	// Хвостовой сегмент-заполнитель "you" отбрасывается
	assert.Equal(t, "Hello world.", assemble([]string{" Hello world.", " you"}, false))
	// Но только если он последний
	assert.Equal(t, "you said hi.", assemble([]string{" you", " said hi."}, false))
	// И только если это единственное слово сегмента
	assert.Equal(t, "Hi. thank you", assemble([]string{" Hi.", " thank you"}, false))
}

func TestAssembleSuppressNonSpeech(t *testing.T) {
	segs := []string{" [MUSIC]", " Привет,", " мир. (applause)"}
	assert.Equal(t, "Привет, мир.", assemble(segs, true))
	assert.Equal(t, "[MUSIC] Привет, мир. (applause)", assemble(segs, false))
}

func TestAssembleEmpty(t *testing.T) {
	assert.Empty(t, assemble(nil, true))
	assert.Empty(t, assemble([]string{" you"}, false))
}

func TestBailLanguageError(t *testing.T) {
	err := &BailLanguageError{Language: "ru"}
	assert.Contains(t, err.Error(), "ru")
}

func TestBeamSearchClampsWidth(t *testing.T) {
	assert.Equal(t, DecodingMode(5), BeamSearch(5))
	assert.Equal(t, DecodingMode(1), BeamSearch(0))
	assert.Equal(t, Greedy, DecodingMode(0))
}

func TestCacheEngineForMissingModel(t *testing.T) {
	dir := t.TempDir()
	store, err := models.NewStore(dir)
	require.NoError(t, err)

	cache := NewCache(store)
	defer cache.Cleanup()

	_, err = cache.EngineFor(models.CategoryEnglish)
	assert.Error(t, err)
}

func TestCacheCleanupIdempotent(t *testing.T) {
	dir := t.TempDir()
	store, err := models.NewStore(dir)
	require.NoError(t, err)

	cache := NewCache(store)
	cache.Cleanup()
	cache.Cleanup() // повторный вызов не должен падать
}
