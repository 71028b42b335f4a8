package event

import (
	"log/slog"

	"github.com/aretw0/arbor/pkg/blackboard"
)

// CreateEventHandler returns a listener that writes message value i into targets[i]
// and notifies the targets' subscribers. Nil targets are skipped.
func CreateEventHandler(logger *slog.Logger, targets ...blackboard.Cell) Listener {
	return createHandler(logger, true, targets)
}

// CreateEventHandlerWithoutNotify is CreateEventHandler for deferred delivery: values are
// written silently and the owner notifies once the message is actually dispatched.
func CreateEventHandlerWithoutNotify(logger *slog.Logger, targets ...blackboard.Cell) Listener {
	return createHandler(logger, false, targets)
}

func createHandler(logger *slog.Logger, notify bool, targets []blackboard.Cell) Listener {
	return func(args []any) {
		for i, target := range targets {
			if target == nil || i >= len(args) {
				continue
			}
			var err error
			if notify {
				err = target.SetObjectValue(args[i])
			} else {
				err = target.SetObjectValueWithoutNotify(args[i])
			}
			if err != nil && logger != nil {
				logger.Error("event value not assigned", "variable", target.Name(), "index", i, "err", err)
			}
		}
	}
}
