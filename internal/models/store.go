package models

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

// ggmlMagic сигнатура GGML файла (первые 4 байта little-endian).
const ggmlMagic = 0x67676d6c

// Store хранилище моделей на диске. Файлы моделей читаются через mmap,
// без копирования в кучу.
type Store struct {
	dir string
}

// NewStore создаёт хранилище в указанной директории.
// Пустой путь означает директорию models/ рядом с бинарником.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		execPath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("не удалось определить путь к бинарнику: %w", err)
		}
		execPath, err = filepath.EvalSymlinks(execPath)
		if err != nil {
			return nil, fmt.Errorf("не удалось разрешить симлинки: %w", err)
		}
		dir = filepath.Join(filepath.Dir(execPath), "models")
	}
	return &Store{dir: dir}, nil
}

// Dir возвращает путь к директории моделей.
func (s *Store) Dir() string {
	return s.dir
}

// Path возвращает полный путь к файлу модели категории.
func (s *Store) Path(category Category) string {
	info, ok := GetModel(category)
	if !ok {
		return ""
	}
	return filepath.Join(s.dir, info.Filename)
}

// IsPresent проверяет, что файл модели существует и не пуст.
func (s *Store) IsPresent(category Category) bool {
	stat, err := os.Stat(s.Path(category))
	return err == nil && stat.Size() > 0
}

// HasAnyModel проверяет, доступна ли хотя бы одна модель.
func (s *Store) HasAnyModel() bool {
	for _, m := range Registry {
		if s.IsPresent(m.Category) {
			return true
		}
	}
	return false
}

// ModelBytes отображённый в память файл модели.
// Release обязателен после использования.
type ModelBytes struct {
	data mmap.MMap
	file *os.File
}

// Bytes возвращает представление файла без копирования.
func (b *ModelBytes) Bytes() []byte {
	return b.data
}

// Release снимает отображение и закрывает файл.
func (b *ModelBytes) Release() error {
	if b.data != nil {
		if err := b.data.Unmap(); err != nil {
			return err
		}
		b.data = nil
	}
	if b.file != nil {
		err := b.file.Close()
		b.file = nil
		return err
	}
	return nil
}

// LoadBytes отображает файл модели в память и проверяет GGML сигнатуру.
// Отсутствие или повреждение файла - ошибка ввода-вывода, не паника.
func (s *Store) LoadBytes(category Category) (*ModelBytes, error) {
	path := s.Path(category)
	if path == "" {
		return nil, fmt.Errorf("неизвестная категория модели: %s", category)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("модель не найдена: %w", err)
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("не удалось отобразить модель в память: %w", err)
	}

	mb := &ModelBytes{data: data, file: file}
	if len(data) < 4 || binary.LittleEndian.Uint32(data[:4]) != ggmlMagic {
		mb.Release()
		return nil, fmt.Errorf("повреждённый файл модели: %s", path)
	}

	return mb, nil
}
