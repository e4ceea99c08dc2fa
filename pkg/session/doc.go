/*
Package session serialises access to quest instances.

A Manager holds one mutex per instance id, optionally backed by a
ports.DistributedLocker so that several executor replicas agree on a single
writer, and converts instances to and from the encoded records kept by a
ports.InstanceStore.
*/
package session
