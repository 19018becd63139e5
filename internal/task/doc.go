// Package task manages background job queuing, processing, and lifecycle.
// It provides mechanisms for asynchronous execution of work spun off the
// session lifecycle, archiving completed session snapshots and firing the
// per-session inactivity timeout, ensuring neither blocks request handling.
package task
