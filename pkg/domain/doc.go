/*
Package domain contains the core domain models of the arbor behavior-tree runtime.

It defines the vocabulary shared by every other package: node Status values, the compiled
tree description consumed by the compiler, the persisted TreeState produced by snapshots,
lifecycle hooks for observability and the sentinel errors. This package is kept pure and
free of I/O, following the same hexagonal split as the adapters and ports packages.

# Key Entities

  - Status: outcome of a node {Uninitialized, Running, Waiting, Success, Failure}.
  - TreeDescription: a compiled tree (nodes, links, blackboard declarations).
  - TreeState: a serializable snapshot of an in-flight tree instance.
  - LifecycleHooks: callbacks fired around ticks and node starts/ends.
*/
package domain
