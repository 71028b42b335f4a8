/*
Package tree implements the behavior-tree execution model.

A Graph is an arena of nodes addressed by Handle. Parent/child links live in the arena,
so a node reached from several parents (a join) is shared without ownership cycles.

# Lifecycle

StartNode calls OnStart. A terminal result (Success/Failure) ends the node immediately;
Running registers it for direct OnUpdate calls on later ticks; anything else maps to
Waiting, meaning the node only reflects the progress of its children. When a Running node
finishes, its Waiting parents are woken through their OnUpdate. EndNode runs OnEnd once and
cascades to in-progress children. ResetStatus returns a subtree to Uninitialized.

Tick drives one simulation step. Errors and panics inside node callbacks are logged and
degrade to Failure; they never escape Tick.
*/
package tree
