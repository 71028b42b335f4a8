/*
Package dsl provides a Go DSL for programmatically constructing behavior tree descriptions.

It allows developers to define trees with a fluent builder instead of relying on
external YAML or JSON files. This is particularly useful for generated trees,
unit testing, and leveraging IDE autocompletion/type-checking.

Example usage:

	b := dsl.New("guard").
		Variable("Health", domain.TypeInt, 100).
		Shared("Alarm", domain.TypeBool, false)

	b.Add("main", "selector").Children("flee", "patrol")
	b.Add("flee", "guard").Children("run").Compare("Health", "<", 30)
	b.Add("run", "set_variable").Set("target", "Alarm").Set("value", true)
	b.Add("patrol", "wait_frames").Set("frames", 10)

	desc, err := b.Build()
	// ... pass desc to arbor.Engine.Compile, or b.Loader() to arbor.WithLoader
*/
package dsl
