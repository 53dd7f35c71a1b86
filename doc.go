/*
Package rangelock implements reader/writer locks over sub-ranges of a linear
address space, such as byte offsets in a file.

Ranges

A lock request covers an inclusive range [Start, Last]. Two requests only
interact when their ranges overlap: disjoint ranges are locked fully in
parallel, whatever their kind.

Read and write

Overlapping readers share their ranges. A writer excludes every overlapping
reader and writer. A request waits for each conflicting request that was
already in the tree when it arrived, and is granted as soon as the last of
them leaves, in whatever order they leave.

Cancellation

Blocking acquisitions come in uninterruptible, context-aware, killable and
timed variants. A request that gives up leaves no trace in the tree. A
request that was granted before it noticed its cancellation is kept, and
the caller must unlock it.

Downgrade

A writer can turn into a reader in place, admitting the readers that were
waiting only for it.
*/
package rangelock
