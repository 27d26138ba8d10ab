// Package pool
// Author: momentics <momentics@gmail.com>
//
// Reusable byte buffers for the relay path: the per-engine read buffer and
// the copied tails of short writes waiting for write readiness.
package pool
