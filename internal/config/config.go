// Package config предоставляет конфигурацию приложения с сохранением в файл.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// VADConfig хранит настройки детектора речи.
type VADConfig struct {
	Enabled           bool `json:"enabled"`
	Sensitivity       int  `json:"sensitivity"`         // 0..3, больше - агрессивнее
	SilenceDurationMs int  `json:"silence_duration_ms"` // тишина до автостопа
	SpeechDurationMs  int  `json:"speech_duration_ms"`  // речь до признания начала
}

// configData структура для сериализации. Notifications через указатель:
// отсутствие ключа в файле не должно затирать значение по умолчанию.
type configData struct {
	Language          string    `json:"language"`
	Notifications     *bool     `json:"notifications"`
	VAD               VADConfig `json:"vad"`
	ModelsDir         string    `json:"models_dir,omitempty"`
	VoskModelPath     string    `json:"vosk_model_path,omitempty"`
	DumpDir           string    `json:"dump_dir,omitempty"`
	BailLanguages     []string  `json:"bail_languages,omitempty"`
	SuppressNonSpeech bool      `json:"suppress_non_speech"`
	BeamSize          int       `json:"beam_size,omitempty"`
}

// Config хранит настройки приложения.
type Config struct {
	mu                sync.RWMutex
	language          string
	notifications     bool
	vad               VADConfig
	modelsDir         string
	voskModelPath     string
	dumpDir           string
	bailLanguages     []string
	suppressNonSpeech bool
	beamSize          int
	configPath        string
}

// New создаёт конфигурацию, загружая из файла или с настройками по умолчанию.
func New() *Config {
	// Файл конфигурации лежит рядом с бинарником
	configPath := ""
	execPath, err := os.Executable()
	if err == nil {
		// Резолвим симлинки
		execPath, err = filepath.EvalSymlinks(execPath)
		if err == nil {
			configPath = filepath.Join(filepath.Dir(execPath), "config.json")
		}
	}
	return newAt(configPath)
}

// newAt создаёт конфигурацию с явным путём к файлу.
func newAt(configPath string) *Config {
	c := &Config{
		language:      "en",
		notifications: true,
		vad: VADConfig{
			Enabled:           true,
			Sensitivity:       2,
			SilenceDurationMs: 1500,
			SpeechDurationMs:  300,
		},
		suppressNonSpeech: true,
		configPath:        configPath,
	}

	// Пытаемся загрузить конфигурацию
	c.load()

	return c
}

// load загружает конфигурацию из файла.
func (c *Config) load() {
	if c.configPath == "" {
		return
	}

	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return // Файл не существует, используем defaults
	}

	var cfg configData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return
	}

	if cfg.Language != "" {
		c.language = cfg.Language
	}
	if cfg.Notifications != nil {
		c.notifications = *cfg.Notifications
	}
	if cfg.VAD.SilenceDurationMs > 0 {
		c.vad = cfg.VAD
	}
	c.modelsDir = cfg.ModelsDir
	c.voskModelPath = cfg.VoskModelPath
	c.dumpDir = cfg.DumpDir
	c.bailLanguages = cfg.BailLanguages
	c.suppressNonSpeech = cfg.SuppressNonSpeech
	c.beamSize = cfg.BeamSize
}

// save сохраняет конфигурацию в файл.
func (c *Config) save() {
	if c.configPath == "" {
		return
	}

	notifications := c.notifications
	cfg := configData{
		Language:          c.language,
		Notifications:     &notifications,
		VAD:               c.vad,
		ModelsDir:         c.modelsDir,
		VoskModelPath:     c.voskModelPath,
		DumpDir:           c.dumpDir,
		BailLanguages:     c.bailLanguages,
		SuppressNonSpeech: c.suppressNonSpeech,
		BeamSize:          c.beamSize,
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return
	}

	os.WriteFile(c.configPath, data, 0644)
}

// SetLanguage устанавливает подсказку языка распознавания
// (код либо список кодов через запятую).
func (c *Config) SetLanguage(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = lang
	c.save()
}

// Language возвращает текущую подсказку языка распознавания.
func (c *Config) Language() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.language
}

// SetNotifications включает/выключает уведомления.
func (c *Config) SetNotifications(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = enabled
	c.save()
}

// NotificationsEnabled возвращает true если уведомления включены.
func (c *Config) NotificationsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notifications
}

// VAD возвращает настройки детектора речи.
func (c *Config) VAD() VADConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vad
}

// SetVAD устанавливает настройки детектора речи.
func (c *Config) SetVAD(cfg VADConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vad = cfg
	c.save()
}

// ModelsDir возвращает директорию моделей whisper (пусто - рядом с бинарником).
func (c *Config) ModelsDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modelsDir
}

// VoskModelPath возвращает путь к резервной модели vosk.
func (c *Config) VoskModelPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.voskModelPath
}

// DumpDir возвращает директорию для отладочных WAV-дампов
// (пусто - дампы выключены).
func (c *Config) DumpDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dumpDir
}

// BailLanguages возвращает список языков досрочного прерывания.
func (c *Config) BailLanguages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.bailLanguages...)
}

// SetBailLanguages устанавливает список языков досрочного прерывания.
func (c *Config) SetBailLanguages(codes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bailLanguages = append([]string(nil), codes...)
	c.save()
}

// SuppressNonSpeech возвращает true если фильтрация неречевых
// аннотаций включена.
func (c *Config) SuppressNonSpeech() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.suppressNonSpeech
}

// BeamSize возвращает ширину луча декодера (0 и 1 - жадный поиск).
func (c *Config) BeamSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.beamSize
}
