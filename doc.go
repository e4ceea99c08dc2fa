/*
Package questgraph compiles authored quest graphs into immutable state machines
and drives live quest instances from gameplay events.

# Concept

Designers author a quest as a graph of nodes (objectives, branches, gates,
actions and terminals) connected through typed pins. The pipeline is strictly
one-way: the document is validated, the validated snapshot is compiled into a
dense, index-based Machine, and the Machine is shared read-only by every
instance. Instances only react to observed predicate values; they never read
the clock or perform I/O on their own.

# Usage

A quest can live in a single YAML file or in a Loam directory with one
Markdown/JSON/YAML file per node.

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/questgraph"
		"github.com/aretw0/questgraph/pkg/domain"
	)

	func main() {
		eng, err := questgraph.New("./quests/smith.yaml")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		if _, err := eng.Compile(ctx); err != nil {
			log.Fatal(err)
		}

		id, err := eng.Create(ctx, "")
		if err != nil {
			log.Fatal(err)
		}
		if _, err := eng.Start(ctx, id); err != nil {
			log.Fatal(err)
		}

		out, err := eng.Observe(ctx, id, "talked", domain.Bool(true))
		if err != nil {
			log.Fatal(err)
		}
		log.Println(out.Status, out.Entered)
	}

# Persistence

Instances are stored as encoded bytes through ports.InstanceStore. Adapters
exist for memory, files, Redis and SQL (SQLite and Postgres); store
middleware adds encryption at rest and masking of sensitive observations.
*/
package questgraph
