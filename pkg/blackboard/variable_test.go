package blackboard_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/aretw0/arbor/pkg/blackboard"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariable_NotifiesOnlyOnChange(t *testing.T) {
	v := blackboard.NewVariable("Health", 10)
	calls := 0
	v.OnValueChanged(func() { calls++ })

	v.SetValue(10)
	assert.Equal(t, 0, calls, "equal value must not notify")

	v.SetValue(11)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 11, v.Value())

	v.SetValueWithoutNotify(12)
	assert.Equal(t, 1, calls, "WithoutNotify must never notify")
	assert.Equal(t, 12, v.Value())

	require.NoError(t, v.SetObjectValue(13))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 13, v.ObjectValue())
}

func TestVariable_SliceEquality(t *testing.T) {
	v := blackboard.NewVariable("Path", []string{"a", "b"})
	calls := 0
	v.OnValueChanged(func() { calls++ })

	v.SetValue([]string{"a", "b"})
	assert.Equal(t, 0, calls)

	v.SetValue([]string{"a"})
	assert.Equal(t, 1, calls)
}

func TestVariable_TypeMismatchIsDropped(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	v := blackboard.NewVariable("Health", 10, blackboard.WithLogger(logger))

	err := v.SetObjectValue("lots")
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
	assert.Equal(t, 10, v.Value())
	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestVariable_NilForPointerTypes(t *testing.T) {
	type target struct{ X int }
	v := blackboard.NewVariable("Target", &target{X: 1})
	require.NoError(t, v.SetObjectValue(nil))
	assert.Nil(t, v.Value())
}

func TestVariable_Unsubscribe(t *testing.T) {
	v := blackboard.NewVariable("Count", 0)
	calls := 0
	cancel := v.OnValueChanged(func() { calls++ })
	assert.Equal(t, 1, v.Subscribers())

	cancel()
	cancel() // idempotent
	v.SetValue(1)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, v.Subscribers())
}

func TestVariable_UnsubscribeDuringDispatch(t *testing.T) {
	v := blackboard.NewVariable("Count", 0)
	var order []string
	var cancelSecond func()
	v.OnValueChanged(func() {
		order = append(order, "first")
		cancelSecond()
	})
	cancelSecond = v.OnValueChanged(func() { order = append(order, "second") })

	v.SetValue(1)
	assert.Equal(t, []string{"first"}, order)
}

func TestVariable_DuplicateIsIndependent(t *testing.T) {
	v := blackboard.NewVariable("Speed", 1.5)
	dup := v.DuplicateTyped()

	assert.Equal(t, v.GUID(), dup.GUID())
	assert.Equal(t, v.Name(), dup.Name())

	calls := 0
	dup.OnValueChanged(func() { calls++ })

	v.SetValue(3)
	assert.Equal(t, 1.5, dup.Value(), "non-shared duplicates own their storage")
	assert.Equal(t, 1, calls, "changes of the original are re-raised on the duplicate")

	v.SetValueWithoutNotify(4)
	assert.Equal(t, 1, calls)

	dup.SetValue(2)
	assert.Equal(t, 4.0, v.Value())
	assert.Equal(t, 2, calls)

	dup.Dispose()
	v.SetValue(5)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, v.Subscribers())
}

func TestVariable_RestoreValue(t *testing.T) {
	v := blackboard.NewVariable("Ammo", 0)
	calls := 0
	v.OnValueChanged(func() { calls++ })

	// JSON round trips produce float64.
	require.NoError(t, v.RestoreValue(float64(42)))
	assert.Equal(t, 42, v.Value())
	assert.Equal(t, 0, calls)

	err := v.RestoreValue(map[string]any{"x": 1})
	assert.ErrorIs(t, err, domain.ErrTypeMismatch)
}

func TestVariable_TypeName(t *testing.T) {
	v := blackboard.NewVariable("Mood", "Idle", blackboard.WithTypeName("Mood"))
	assert.Equal(t, "Mood", v.TypeName())
	assert.Equal(t, "string", v.Type().String())

	plain := blackboard.NewVariable("Name", "bob")
	assert.Equal(t, "string", plain.TypeName())
}
