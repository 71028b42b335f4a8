/*
Package ports defines the driven ports (interfaces) of the arbor runtime.

These interfaces decouple agents from external implementations, allowing trees
to be loaded from various sources and snapshots to be kept in various stores.

# Key Interfaces

  - TreeLoader: Responsible for loading tree descriptions (e.g., from files or memory).
  - StateStore: Responsible for persisting and loading session snapshots.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
