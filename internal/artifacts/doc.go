// Package artifacts publishes finished job outputs to the object store and
// hands text outputs to the downstream summary consumer.
package artifacts
