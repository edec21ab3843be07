/*
Package session hosts simulations on behalf of remote callers.

A Manager keeps live simulators in memory and persists every session through a
ports.SessionStore. Each mutating call is appended to the session journal
before the record is saved; a replica that does not hold the simulator in
memory rebuilds it by replaying that journal, which is exact because
simulation is deterministic.

Access to a session is serialized by a per-session mutex (reference counted so
idle sessions leave nothing behind) and, when configured, a
ports.DistributedLocker shared by all replicas.
*/
package session
