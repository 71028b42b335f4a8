package nodes

import (
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/mitchellh/mapstructure"
)

// decodeState fills out from node state, accepting both in-memory snapshots
// and JSON round-tripped ones (numbers as float64, statuses and times as strings).
func decodeState(data map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}

func fail(b *tree.Base, msg string, args ...any) domain.Status {
	b.Logger().Error(msg, args...)
	return domain.StatusFailure
}

// progress maps any non-terminal status to Waiting.
func progress(s domain.Status) domain.Status {
	if s.IsTerminal() {
		return s
	}
	return domain.StatusWaiting
}
