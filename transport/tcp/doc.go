// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements raw, non-blocking TCP sockets over golang.org/x/sys/unix:
// a transport address, name resolution, an owned descriptor handle with
// deadline-bounded transfer primitives, a bounded connector and a
// non-blocking listener.
package tcp
