package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier доставка сообщения. false значит не доставлено, ошибкой это не считается
type Notifier interface {
	Send(ctx context.Context, destination, payload string) bool
}

// LogNotifier пишет сообщения в лог, используется без токена бота
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, destination, payload string) bool {
	n.logger.Info("Notification",
		zap.String("destination", destination),
		zap.String("payload", payload),
	)
	return true
}

// Async отправляет в отдельной горутине, вызывающий не ждёт доставки
type Async struct {
	next    Notifier
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration, logger *zap.Logger) *Async {
	return &Async{next: next, timeout: timeout, logger: logger}
}

// Send всегда возвращает true: сообщение поставлено в отправку
func (a *Async) Send(ctx context.Context, destination, payload string) bool {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()

		if !a.next.Send(sendCtx, destination, payload) {
			a.logger.Warn("Notification not delivered", zap.String("destination", destination))
		}
	}()
	return true
}

// Wait дожидается отправок в полёте, вызывается при остановке
func (a *Async) Wait() {
	a.wg.Wait()
}
