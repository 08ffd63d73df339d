/*
Package sstablewriter builds immutable, multi-file SSTables: a sequential
data file, a primary index, a sparse index summary, a Bloom filter, and
statistics metadata, committed atomically via a table-of-contents file.

The writer accepts partitions in strictly increasing key order and streams
them straight to disk with bounded memory, computing a Bloom filter and an
index summary alongside the primary index as it goes. Callers may mark a
rewind point and later discard everything appended since, open a reader
over the durable prefix of an in-progress build, or commit the whole table
in one transactional step.

# Usage

See internal/sstable for the TableWriter type and its collaborators (the
data sink, index writer, summary and Bloom filter builders, and the
transaction tracker).

# Concurrency

A TableWriter is not safe for concurrent use: append, mark, resetAndTruncate,
prepareToCommit, commit, and abort must all be invoked from a single
goroutine. Readers produced by OpenEarly/OpenFinalEarly may be used
concurrently with the writer and with each other.

# Durability

A table is committed once its table-of-contents file has been renamed into
place; every earlier component is flushed, fsynced, and renamed before the
TOC is written. A failure before the TOC rename aborts the whole build and
removes every temp file it created.
*/
package sstablewriter
