// Package mock provides test doubles for the ai interfaces. The defaults
// are deterministic so tests can embed, search, and generate without any
// external service; function fields override behavior per test.
package mock
