// Package fixture hosts a small read-only Fiber service over a directory of
// saved fixtures. It exists for investigation workflows: after a run with
// save mode enabled, the index route decodes every filename back to its
// original URL so a teammate can see exactly which requests a report touched,
// and the raw route serves the stored body byte for byte. The service never
// writes; the directory stays caller-managed.
package fixture
