// Package util provides small helpers shared by the command line tools.
//
// The package contains:
//   - statistics: summary statistics (mean, deviation, min/max) and a
//     distribution quality score used by the perf command to report how evenly
//     load was spread over concurrent callers
package util
