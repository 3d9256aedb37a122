// Package notif defines the shared vocabulary of the notification engine:
// the notification kinds, rendered content, local wall-clock time math,
// and the interfaces to the platform notification API, the analytics
// sink, and the wall clock.
//
// Everything else in the engine is built on two observable facts about a
// notification: it is present in the platform's scheduled set, or it is
// absent after its fire time. The platform gives no delivery receipt, so
// "fired" is always an estimate made by the reconciler.
package notif
