// Package models управляет моделями распознавания речи на диске.
package models

import "strings"

// Category категория модели Whisper.
type Category string

const (
	// CategoryEnglish - компактная модель только для английского.
	CategoryEnglish Category = "english"
	// CategoryMultilingual - модель для всех остальных языков.
	CategoryMultilingual Category = "multilingual"
)

// ModelInfo информация о модели.
type ModelInfo struct {
	Category Category // Категория модели
	Name     string   // Отображаемое имя
	Filename string   // Имя файла в директории моделей
	Size     int64    // Ожидаемый размер в байтах (ориентировочно)
}

// Registry все встроенные модели. Ровно по одной на категорию.
var Registry = []ModelInfo{
	{
		Category: CategoryEnglish,
		Name:     "Voice Input English",
		Filename: "voice-input-english-39.bin",
		Size:     39 * 1024 * 1024,
	},
	{
		Category: CategoryMultilingual,
		Name:     "Voice Input Multilingual",
		Filename: "voice-input-multilingual-74.bin",
		Size:     74 * 1024 * 1024,
	},
}

// ResolveCategory возвращает категорию модели для языка.
// "en" обслуживается английской моделью, всё остальное - мультиязычной.
func ResolveCategory(languageCode string) Category {
	if NormalizeLanguage(languageCode) == "en" {
		return CategoryEnglish
	}
	return CategoryMultilingual
}

// GetModel возвращает описание модели категории.
func GetModel(category Category) (ModelInfo, bool) {
	for _, m := range Registry {
		if m.Category == category {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// normalizeTable устаревшие и региональные ISO коды -> канонические.
var normalizeTable = map[string]string{
	"iw":    "he", // устаревший код иврита
	"in":    "id", // устаревший код индонезийского
	"ji":    "yi", // устаревший код идиша
	"zh_cn": "zh",
	"zh_tw": "zh",
	"pt_br": "pt",
	"pt_pt": "pt",
	"nb":    "no",
	"nn":    "no",
}

// NormalizeLanguage приводит код языка к каноническому виду Whisper:
// нижний регистр ISO 639-1 без региональной части. Неизвестные коды
// проходят без изменений.
func NormalizeLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "_")
	if code == "" {
		return ""
	}
	if canonical, ok := normalizeTable[code]; ok {
		return canonical
	}
	if i := strings.IndexByte(code, '_'); i > 0 {
		base := code[:i]
		if canonical, ok := normalizeTable[base]; ok {
			return canonical
		}
		return base
	}
	return code
}

// MultilingualLanguages языки, поддерживаемые мультиязычной моделью.
// Это подмножество, полная модель поддерживает 99 языков.
func MultilingualLanguages() []string {
	return []string{
		"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr",
		"pl", "ca", "nl", "ar", "sv", "it", "id", "hi", "fi", "vi",
		"he", "uk", "el", "ms", "cs", "ro", "da", "hu", "ta", "no",
		"th", "ur", "hr", "bg", "lt", "la", "mi", "ml", "cy", "sk",
		"te", "fa", "lv", "bn", "sr", "az", "sl", "kn", "et", "mk",
		"br", "eu", "is", "hy", "ne", "mn", "bs", "kk", "sq", "sw",
		"gl", "mr", "pa", "si", "km", "sn", "yo", "so", "af", "oc",
		"ka", "be", "tg", "sd", "gu", "am", "yi", "lo", "uz", "fo",
		"ht", "ps", "tk", "mt", "sa", "lb", "my", "bo", "tl",
		"mg", "as", "tt", "haw", "ln", "ha", "ba", "jw", "su", "yue",
	}
}

// IsSupported проверяет, известен ли язык мультиязычной модели.
func IsSupported(code string) bool {
	code = NormalizeLanguage(code)
	for _, lang := range MultilingualLanguages() {
		if lang == code {
			return true
		}
	}
	return false
}
