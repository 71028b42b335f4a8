/*
Package nodes provides the built-in node kinds: composites, modifiers, joins,
actions, conditions, event-driven start and subgraph runners.

Every node follows the lifecycle protocol of package tree. Composites that only
aggregate their children return Waiting and are woken when a child finishes;
nodes polling something every tick (timers, guards, subgraphs) return Running.
Configuration problems are logged at error level and reported as Failure.
*/
package nodes
