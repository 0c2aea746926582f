package godb

import "time"

// DefaultPageSize is the on-disk size of a heap page. PageSize is a var,
// not a const, because tests shrink it to exercise multi-page files and
// eviction without writing megabytes of fixtures -- production code never
// changes it after startup.
const DefaultPageSize = 4096

var PageSize = DefaultPageSize

// StringMaxSize is fixed for a build: every StringField, on disk, occupies
// exactly this many bytes (plus its 4-byte length prefix). Unlike
// PageSize it is not meant to vary between tests and production.
const StringMaxSize = 32

// BufferPoolDefaultPages is the default capacity, in pages, of a
// BufferPool created without an explicit size.
const BufferPoolDefaultPages = 50

// NumHistBins is the number of buckets TableStats builds for each integer
// column's histogram.
const NumHistBins = 100

// IOCostPerPage is the assumed cost, in arbitrary cost units, of reading
// one page from disk. TableStats.EstimateScanCost scales off of this.
const IOCostPerPage = 1000

// LockTimeout bounds how long BufferPool.GetPage will retry a failed lock
// acquisition before aborting the calling transaction. It is the engine's
// entire deadlock-avoidance mechanism: no wait-for-graph, just a clock.
const LockTimeout = 3 * time.Second
