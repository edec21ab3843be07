/*
Package ports defines the driven ports (interfaces) of the simulator.

These interfaces decouple the simulation core and the session manager from
external implementations, so machines can come from files or memory and
sessions can live in memory or Redis.

# Key Interfaces

  - MachineLoader: Resolves a machine reference (file path, name) into a domain.Machine.
  - SessionStore: Persists session records (machine, options, journal and last snapshot).
  - DistributedLocker: Provides distributed locking for concurrent session access across replicas.
*/
package ports
