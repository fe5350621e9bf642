// Package domain defines the core business types for the Conduit pipeline
// orchestration engine.
//
// This package contains pure domain logic with ZERO external dependencies
// outside the Go standard library. All types in this package are:
//
// - Independent of infrastructure (no HTTP, provider SDKs, exporters)
// - Technology-agnostic (no framework coupling)
// - Testable in isolation without mocks
//
// Other packages (provider, engine, resilience, config) implement behaviour
// on top of these types and depend on them. The dependency direction is
// always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
