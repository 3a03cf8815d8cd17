package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baselineOutput = `goos: linux
goarch: amd64
pkg: github.com/MrEthical07/fleetAuth
BenchmarkAuthenticate-8              	  300000	      4000 ns/op	    1200 B/op	      20 allocs/op
BenchmarkAuthenticate-8              	  300000	      4200 ns/op	    1200 B/op	      20 allocs/op
BenchmarkVerifyToken-8               	  500000	      2000 ns/op	     900 B/op	      15 allocs/op
BenchmarkLogin-8                     	     100	  9000000 ns/op
BenchmarkLoginWrongPasswordLocked-8  	 1000000	      1000 ns/op	     200 B/op	       4 allocs/op
BenchmarkMetricsIncParallel-8        	100000000	        10 ns/op
BenchmarkSomethingElse-8             	 1000000	      1000 ns/op
PASS
`

func TestParseBenchmarks(t *testing.T) {
	samples, err := parseBenchmarks(strings.NewReader(baselineOutput))
	require.NoError(t, err)

	assert.Equal(t, []float64{4000, 4200}, samples["BenchmarkAuthenticate"]["ns/op"])
	assert.Equal(t, []float64{20, 20}, samples["BenchmarkAuthenticate"]["allocs/op"])
	assert.NotContains(t, samples, "BenchmarkSomethingElse")
}

func TestCompareFlagsRegression(t *testing.T) {
	baseline, err := parseBenchmarks(strings.NewReader(baselineOutput))
	require.NoError(t, err)
	candidate, err := parseBenchmarks(strings.NewReader(
		strings.Replace(baselineOutput, "2000 ns/op", "3000 ns/op", 1),
	))
	require.NoError(t, err)

	_, failures := compare(baseline, baseline, defaultThreshold)
	assert.Empty(t, failures)

	_, failures = compare(baseline, candidate, defaultThreshold)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "BenchmarkVerifyToken ns/op")
}

func TestCompareReportsMissingSamples(t *testing.T) {
	baseline, err := parseBenchmarks(strings.NewReader(baselineOutput))
	require.NoError(t, err)

	_, failures := compare(baseline, sampleSet{}, defaultThreshold)
	assert.NotEmpty(t, failures)
	assert.Contains(t, failures[0], "missing samples")
}

func TestNormalizeBenchmarkName(t *testing.T) {
	assert.Equal(t, "BenchmarkLogin", normalizeBenchmarkName("BenchmarkLogin-16"))
	assert.Equal(t, "BenchmarkLogin-fast", normalizeBenchmarkName("BenchmarkLogin-fast"))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}
