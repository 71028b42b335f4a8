package blackboard

import "reflect"

// valuesEqual compares with == when the dynamic types allow it and falls back to
// reflect.DeepEqual for slices, maps and structs containing them.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() && comparableValue(reflect.ValueOf(a)) {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// comparableValue guards against interface-typed struct fields holding slices,
// which pass Type.Comparable but panic on ==.
func comparableValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !comparableValue(v.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if !comparableValue(v.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Interface:
		if v.IsNil() {
			return true
		}
		return v.Elem().Type().Comparable() && comparableValue(v.Elem())
	default:
		return v.Type().Comparable()
	}
}
