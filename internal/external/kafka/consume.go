package credits

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type MessageSource interface {
	GetNewMessage(ctx context.Context) ([]byte, error)
}

// Чтение до отмены ctx, не больше workers обработчиков одновременно.
// Ошибка обработчика логируется и не останавливает чтение
func Consume(ctx context.Context, source MessageSource, workers int, logger *zap.Logger, handle func(ctx context.Context, body []byte) error) error {
	if workers <= 0 {
		workers = 1
	}
	g := errgroup.Group{}
	g.SetLimit(workers)

	var readErr error
	for {
		body, err := source.GetNewMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && ctx.Err() == nil {
				readErr = err
			}
			break
		}
		g.Go(func() error {
			if err := handle(ctx, body); err != nil {
				logger.Error(err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
	return readErr
}
