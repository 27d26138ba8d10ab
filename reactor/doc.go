// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides level-triggered readiness multiplexers implementing
// api.Multiplexer: epoll on Linux, poll(2) on other unix systems, and a stub
// elsewhere. Level-triggered reporting means a descriptor that is still
// readable after one read is reported again on the next Wait.
package reactor
