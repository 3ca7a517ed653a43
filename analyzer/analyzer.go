package analyzer

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/HORNET-Storage/dht-hop-tracer/bucket"
	"github.com/HORNET-Storage/dht-hop-tracer/dag"
	"github.com/HORNET-Storage/dht-hop-tracer/hops"
	"github.com/HORNET-Storage/dht-hop-tracer/tree"
)

// ErrMissingLog is returned when the bucket dump or the trace of a CID
// cannot be found.
var ErrMissingLog = errors.New("missing log file")

// Report is the outcome of analyzing one CID. Levels is only set when the
// configuration asks for visualization.
type Report struct {
	Result  hops.Result
	Forest  *dag.Forest
	Buckets []bucket.Bucket
	Levels  tree.Levels
}

// Analyze reads the bucket dump and the provider-search trace of c,
// rebuilds the query forest and computes its hop count. responders maps
// each peer that returned a provider to that provider.
func Analyze(config *Config, c string, responders map[string]string) (*Report, error) {
	logger := log.With().
		Str("component", "analyzer").
		Str("analysis", xid.New().String()).
		Str("cid", c).
		Logger()

	bucketPath := config.BucketPath(c)
	buckets, err := bucket.ReadFile(bucketPath)
	if err != nil {
		return nil, wrapRead(bucketPath, err)
	}

	opts := []dag.BuilderOption{dag.WithLogger(logger)}
	if config.StrictOrigins {
		opts = append(opts, dag.WithStrictOrigins())
	}

	tracePath := config.TracePath(c)
	forest, err := dag.BuildFromFile(tracePath, opts...)
	if err != nil {
		return nil, wrapRead(tracePath, err)
	}

	report := &Report{
		Result:  hops.Analyze(c, forest, responders),
		Forest:  forest,
		Buckets: buckets,
	}

	logger.Debug().
		Int("buckets", len(buckets)).
		Int("queries", len(forest.Queries)).
		Int("responses", len(forest.Responses)).
		Int("providers", len(forest.Providers)).
		Int("dropped", forest.Dropped).
		Int("hops", report.Result.Hops).
		Msg("analysis complete")

	if config.Visualize {
		report.Levels = tree.Export(forest, buckets, responders)

		exportPath := config.ExportPath(c)
		if err := report.Levels.WriteFile(exportPath); err != nil {
			return nil, fmt.Errorf("failed to write tree export %s: %w", exportPath, err)
		}
	}

	return report, nil
}

func wrapRead(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", ErrMissingLog, path, err)
	}
	return fmt.Errorf("failed to read %s: %w", path, err)
}
