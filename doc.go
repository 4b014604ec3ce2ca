// Package quantgo computes approximate weighted quantile summaries
// ("sketches") per feature column and emits the histogram bin boundaries
// ("cuts") used by tree-based learners to discretize continuous features.
//
// A Container owns one sketch per column, stored in a single flat entry
// buffer addressed through a compressed-sparse-column layout, and backed by a
// double buffer so that the reshaping operations (push, prune, merge, unique)
// never overwrite their own input. Features:
//
//   - Ingestion of pre-sorted, optionally weighted per-column samples with
//     duplicate-weight accumulation
//   - Rank-preserving two-pointer merge of summaries
//   - Pruning to a fixed per-column entry budget with rank-bound validity
//   - Segmented deduplication with a pluggable equality comparator
//   - Deterministic repair of floating-point rank-bound drift
//   - Distributed merge across workers through an injected collective
//   - Cut emission with categorical-column support
//   - Checkpointing of sketch state to pluggable blob stores
//
// # Quick Start
//
// Build cuts for a two-column dataset on a single worker:
//
//	ctx := context.Background()
//	ct, err := quantgo.New(2, 16, 1000, 0)
//	if err != nil {
//	    panic(err)
//	}
//
//	// values holds both columns' samples back to back, each column sorted
//	// ascending; cols delimits them.
//	cols := layout.FromSizes([]int{600, 400})
//	budget := layout.Uniform(2, 16*8)
//	if err := ct.Push(ctx, values, weights, cols, budget); err != nil {
//	    panic(err)
//	}
//
//	if _, err := ct.Unique(ctx); err != nil {
//	    panic(err)
//	}
//	if err := ct.AllReduce(ctx); err != nil {
//	    panic(err)
//	}
//	if err := ct.FixError(ctx); err != nil {
//	    panic(err)
//	}
//	matrix, err := ct.MakeCuts(ctx)
//
// # Distributed Runs
//
// Each worker constructs its own Container over its local data partition and
// injects a collective.Communicator. AllReduce is a synchronization point:
// every worker in the group must call it exactly once per round, after which
// all workers hold the identical, globally merged sketch.
//
//	comm, _ := group.Worker(rank)
//	ct, err := quantgo.New(numColumns, maxBins, rows, rank,
//	    quantgo.WithCommunicator(comm),
//	)
//
// # Error Semantics
//
// Precondition violations (column-count mismatches, unsorted input, malformed
// layouts) indicate caller bugs and must be treated as fatal; the container
// never retries. Floating-point rank-bound drift from repeated merges is not
// an error: it is expected and repaired by FixError.
package quantgo
