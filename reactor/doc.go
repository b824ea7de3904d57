// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides readiness waiting for non-blocking descriptors:
// a one-shot Poll over (descriptor, interest) pairs bounded by a deadline, and
// a long-lived epoll EventReactor that drives the echo server loop.
package reactor
