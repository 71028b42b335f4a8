/*
Package blackboard implements the typed variable store shared by the nodes of a tree.

A Variable is a named, GUID-identified, typed cell. Writes through Value setters fire
OnValueChanged exactly once when the new value differs from the old one; the
WithoutNotify setters never fire. Variables declared shared indirect every access through
a canonical Blackboard looked up by GUID, so all instances of a tree observe one value.

Everything here is single-threaded by contract: the tree driver owns the goroutine.
*/
package blackboard
