// Package notify предоставляет системные уведомления.
package notify

import (
	"sync"

	"github.com/gen2brain/beeep"
)

const appName = "Voice Input"

// Notifier отправляет системные уведомления о ходе записи и
// распознавания.
type Notifier struct {
	mu      sync.Mutex
	enabled bool
}

// New создаёт новый Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// SetEnabled включает/выключает уведомления.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	n.enabled = enabled
	n.mu.Unlock()
}

// Recording показывает уведомление о начале записи.
func (n *Notifier) Recording() {
	n.notify("Запись", "Говорите, запись идёт")
}

// Processing показывает уведомление об обработке.
func (n *Notifier) Processing() {
	n.notify("Обработка", "Распознавание речи...")
}

// Success показывает уведомление с распознанным текстом.
func (n *Notifier) Success(text string) {
	if len(text) > 100 {
		text = text[:100] + "..."
	}
	n.notify("Готово", text)
}

// Empty показывает уведомление о пустом результате.
func (n *Notifier) Empty() {
	n.notify("Пусто", "Речь не распознана")
}

// Error показывает уведомление об ошибке.
func (n *Notifier) Error(msg string) {
	n.notify("Ошибка", msg)
}

func (n *Notifier) notify(title, message string) {
	n.mu.Lock()
	enabled := n.enabled
	n.mu.Unlock()
	if !enabled {
		return
	}
	// Игнорируем ошибки уведомлений - они не критичны
	_ = beeep.Notify(appName+": "+title, message, "")
}
