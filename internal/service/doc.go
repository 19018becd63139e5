// Package service contains the application-specific use cases of the study
// engine, split into three subpackages:
//
//   - scheduler selects due cards and computes advisory batch sizes
//   - study manages the active-session table and its lifecycle
//   - insights derives performance, streak, and report analytics
//
// Each subpackage defines its own interface, sentinel errors, and a
// ServiceError wrapper so callers can differentiate failure sites with
// errors.Is and errors.As. Services receive their dependencies through
// constructor injection and depend on domain entities and store interfaces,
// never on concrete infrastructure.
package service
