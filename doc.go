/*
Package arbor is a behavior-tree runtime for building interactive agents: game
characters, bots and automation workflows that react frame by frame.

A tree is a directed acyclic graph of nodes driven by an external tick. Each
node follows a small state machine (uninitialized, running, waiting, success,
failure). Composites decide how children run, modifiers gate a single child,
joins merge several parents, and leaves act on a blackboard of typed
variables that can be shared across every instance of a tree.

# Concept

Trees are authored as descriptions (YAML, JSON or the pkg/dsl builder) and
compiled into assets. An Engine compiles assets and creates Agents from them;
each Agent owns one instance, its blackboard and its frame clock. Subgraphs
are assets too, so a running tree can swap the behaviour it delegates to and
pick up edited descriptions between ticks.

# Key Features

  - Frame-driven execution: nodes never block, long work spans ticks.
  - Event channels: typed, synchronous messages that start subtrees.
  - Durable agents: snapshots restore node statuses, node state and variables.
  - Pluggable storage: memory, file, Redis and SQLite stores.

# Usage

	loader := file.NewLoader("./trees")
	eng := arbor.New(arbor.WithLoader(loader))

	agent, err := eng.NewAgent("guard")
	if err != nil {
		log.Fatal(err)
	}

	for {
		if status := agent.Tick(ctx); status.IsTerminal() {
			break
		}
	}
*/
package arbor
