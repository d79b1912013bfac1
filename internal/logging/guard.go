package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrPanic = errors.New("panic")

// Guard runs one unit of work. A returned error or a panic is logged with the unit
// name; a panic is converted to an error wrapping ErrPanic so callers can carry on.
func Guard(logger *zap.Logger, unit string, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err = fmt.Errorf("%s: %w: %v", unit, ErrPanic, r)
		logger.Error("unit panicked", zap.String("unit", unit), zap.Any("panic", r), zap.Stack("stack"))
	}()
	if runErr := fn(); runErr != nil {
		logger.Error("unit failed", zap.String("unit", unit), zap.Error(runErr))
		return runErr
	}
	return nil
}
