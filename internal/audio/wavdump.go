package audio

import (
	"fmt"
	"os"
	"path/filepath"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DumpWAV сохраняет запись в WAV файл для отладки.
// Возвращает путь к созданному файлу.
func DumpWAV(dir string, rec *Recording) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("не удалось создать директорию дампов: %w", err)
	}

	path := filepath.Join(dir, rec.ID.String()+".wav")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("не удалось создать WAV файл: %w", err)
	}

	data := make([]int, len(rec.PCM)/2)
	for i := range data {
		data[i] = int(int16(uint16(rec.PCM[i*2]) | uint16(rec.PCM[i*2+1])<<8))
	}

	enc := wav.NewEncoder(file, SampleRate, 16, Channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		file.Close()
		return "", fmt.Errorf("ошибка записи WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return "", fmt.Errorf("ошибка закрытия WAV: %w", err)
	}
	return path, file.Close()
}
