package registry

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// RefPrefix marks a property value that references a variable instead of
// holding a literal, e.g. "$Target" in send_event arguments.
const RefPrefix = "$"

// Decode decodes node properties into out. Unknown keys are errors so that
// typos in descriptions surface when the tree is compiled.
func Decode(props map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(props); err != nil {
		return fmt.Errorf("invalid properties: %w", err)
	}
	return nil
}

// Variable resolves a variable reference: a GUID, or a name, optionally
// prefixed with RefPrefix.
func Variable(b Builder, ref string) (blackboard.Cell, error) {
	ref = strings.TrimPrefix(ref, RefPrefix)
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", domain.ErrUnknownVariable)
	}
	bb := b.Blackboard()
	if id, err := uuid.Parse(ref); err == nil {
		if c, ok := bb.Lookup(id); ok {
			return c, nil
		}
	}
	if c, ok := bb.LookupName(ref); ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownVariable, ref)
}

// OptionalVariable is Variable for properties that may be left empty.
func OptionalVariable(b Builder, ref string) (blackboard.Cell, error) {
	if ref == "" {
		return nil, nil
	}
	return Variable(b, ref)
}

// Variables resolves a list of references.
func Variables(b Builder, refs []string) ([]blackboard.Cell, error) {
	out := make([]blackboard.Cell, 0, len(refs))
	for _, ref := range refs {
		c, err := Variable(b, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Typed resolves a reference to a variable of type T.
func Typed[T any](b Builder, ref string) (*blackboard.Variable[T], error) {
	c, err := Variable(b, ref)
	if err != nil {
		return nil, err
	}
	v, ok := c.(*blackboard.Variable[T])
	if !ok {
		return nil, fmt.Errorf("%w: variable %q is %s, want %s", domain.ErrTypeMismatch, c.Name(), c.Type(), reflect.TypeFor[T]())
	}
	return v, nil
}

// Resolve replaces a RefPrefix string with the referenced cell and returns any
// other value unchanged.
func Resolve(b Builder, v any) (any, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, RefPrefix) {
		return v, nil
	}
	return Variable(b, s)
}

// Coerce converts a literal decoded from YAML or JSON into a value of type t.
func Coerce(t reflect.Type, raw any) (any, error) {
	if raw == nil {
		return reflect.Zero(t).Interface(), nil
	}
	if reflect.TypeOf(raw).AssignableTo(t) {
		return raw, nil
	}
	out := reflect.New(t)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out.Interface(),
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTypeMismatch, err)
	}
	return out.Elem().Interface(), nil
}
