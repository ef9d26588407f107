// Package histfilter implements a histogram time-series service.
//
// # Architecture
//
// The service is structured into several key packages:
//   - histogram: float64 bucket codec and the immutable histogram value
//   - aggregators: threshold bin filtering and the capability registry
//     that matches group types to aggregator implementations
//   - api: external API client for sample fetching
//   - database: TimescaleDB integration for histogram storage
//   - server: HTTP service implementation
//   - models: shared data point contracts
//   - scheduler: background sample fetching and processing
//
// Key Features
//
//   - Histogram Buckets:
//     Samples are grouped into buckets derived from the float64 bit
//     layout, keeping 7 mantissa bits. Bucket membership and bounds
//     are exact bit operations, never range arithmetic.
//
//   - Threshold Filtering:
//     Queries remove bins by comparing bucket bounds against a
//     threshold (lt, lte, gt, gte, equal). Buckets that straddle the
//     threshold follow a keep or discard policy, and summary
//     statistics are recomputed for the survivors.
//
//   - Historical Data:
//     The service can bootstrap up to 2 years of historical samples
//     and maintains them through periodic updates.
//
//   - Performance:
//     Uses TimescaleDB for efficient time series storage, streams
//     query results lazily, and caches responses for frequently
//     repeated queries.
//
// Example Usage
//
//	GET /api/v1/series/request.latency/query?start=1700000000&end=1700086400&op=lt&threshold=100&inclusion=keep
//
// For more information about specific packages, see their respective
// documentation.
package histfilter
