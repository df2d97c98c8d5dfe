// Package cosmo_sdk bootstraps Cosmo clients from the environment or from a
// loaded configuration. COSMO_RUNTIME_MODE selects the backend: "http" talks
// to the node at COSMO_API_URL, "mock" uses an in-memory datastore optionally
// seeded from COSMO_MOCK_SEED, and "auto" (the default) picks http when
// COSMO_API_URL is set and mock otherwise. Both backends expose the same
// cosmo.Client API.
package cosmo_sdk
