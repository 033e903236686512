package email

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Notifier despacha correos sin bloquear al llamador. Los fallos se registran
// y nunca se propagan.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// Dispatcher envía cada mensaje en su propia goroutine con un timeout.
type Dispatcher struct {
	logger  *zap.Logger
	sender  Sender
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger, sender Sender, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		logger:  logger,
		sender:  sender,
		timeout: timeout,
	}
}

// Notify no hereda la cancelación del request: el correo debe salir aunque
// el cliente HTTP ya haya cerrado la conexión.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("dispatcher closed, dropping email", zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	go func() {
		defer d.wg.Done()
		defer cancel()
		if err := d.sender.Send(sendCtx, msg); err != nil {
			d.logger.Warn("send email failed",
				zap.Error(err),
				zap.String("to", msg.To),
				zap.String("subject", msg.Subject),
			)
			return
		}
		d.logger.Debug("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	}()
}

// Close deja de aceptar mensajes y espera los envíos en curso hasta que ctx expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
