// Package testutil provides deterministic fixtures for imgcache tests.
//
// This package is intended for use in tests and benchmarks only.
//
//	rng := testutil.NewRNG(seed)
//	payload := rng.Bytes(1024)
//	data := testutil.PNG(rng.Image(64, 48))
package testutil
