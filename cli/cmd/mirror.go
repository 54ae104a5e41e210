package cmd

import (
	"fmt"
	"time"

	"github.com/pithecene-io/thence/config"
	"github.com/pithecene-io/thence/eventstore"
	"github.com/pithecene-io/thence/lode"
	"github.com/pithecene-io/thence/metrics"
)

// buildMirror constructs the eventstore.Mirror a run should archive its
// events into, per the run config's [lode] section. Mirroring is entirely optional: with neither lode.root nor
// lode.s3 set, the event log is only ever written locally.
func buildMirror(lc config.LodeConfig, runID string, collector *metrics.Collector) (eventstore.Mirror, error) {
	if !lc.Enabled() {
		return eventstore.NoopMirror{}, nil
	}

	dataset := lc.Dataset
	if dataset == "" {
		dataset = lode.DefaultDataset
	}
	lodeCfg := lode.Config{
		Dataset:  dataset,
		Source:   "thence",
		Category: "events",
		Day:      lode.DeriveDay(time.Now()),
		RunID:    runID,
	}

	var (
		client *lode.LodeClient
		err    error
	)
	if lc.S3 != nil {
		client, err = lode.NewLodeS3Client(lodeCfg, lode.S3Config{
			Bucket:       lc.S3.Bucket,
			Prefix:       lc.S3.Prefix,
			Region:       lc.S3.Region,
			Endpoint:     lc.S3.Endpoint,
			UsePathStyle: lc.S3.UsePathStyle,
		})
	} else {
		client, err = lode.NewLodeClient(lodeCfg, lc.Root)
	}
	if err != nil {
		return nil, fmt.Errorf("lode: %w", err)
	}

	sink := lode.NewSink(lodeCfg, client)
	return lode.NewInstrumentedMirror(sink, collector), nil
}
