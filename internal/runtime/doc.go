/*
Package runtime executes compiled quest machines.

An Instance holds the mutable state of one quest run against a shared,
immutable domain.Machine. Events arrive as Start, Observe, Abandon,
Interrupt and ForceEnter calls; each call settles the instance by letting
every active state whose guard holds leave, cascading until nothing can
move, and reports an Outcome with the milestones entered and the actions
requested along the way.

A call either commits completely or leaves the instance untouched.

The Executor adds persistence: it looks instances up through a
session.Manager, resolves their definitions from a ports.DefinitionRegistry
and serialises calls per instance id.
*/
package runtime
