// Voice Input - полностью офлайновый голосовой ввод текста.
//
// Запись с микрофона, детектор речи и распознавание через whisper.cpp
// без каких-либо сетевых вызовов. Enter начинает и останавливает
// запись, распознанный текст печатается в stdout.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"voice-input/internal/app"
)

// Version устанавливается при сборке через -ldflags.
var Version = "dev"

func main() {
	log.SetFlags(log.Ltime | log.Lshortfile)
	log.Printf("Voice Input %s запускается...", Version)

	application, err := app.New()
	if err != nil {
		log.Printf("Ошибка инициализации: %v", err)
		os.Exit(1)
	}
	defer application.Close()

	application.OnPartial(func(text string) {
		fmt.Printf("\r... %s", text)
	})
	application.OnTranscript(func(text, lang string) {
		fmt.Printf("\r[%s] %s\n", lang, text)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Завершение по сигналу")
		application.Close()
		os.Exit(0)
	}()

	fmt.Println("Enter - начать/остановить запись, Ctrl+C - выход.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		application.Toggle()
	}
}
