// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free MPMC primitives shared by the completion backends and the
// work queue: a bounded ring buffer and a channel-based counting
// semaphore. Collapsed from the teacher's several near-duplicate ring
// drafts (core/concurrency/ring.go, core/concurrency/lock_free_queue.go)
// into the one implementation this module actually needs.
package concurrency
