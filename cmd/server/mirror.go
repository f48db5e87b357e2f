package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"parkstep.io/internal/config"
	"parkstep.io/internal/network"
	"parkstep.io/internal/persistence/mirror"
	"parkstep.io/internal/sim/desync"
)

// buildMirror returns nil when mirroring is disabled.
func buildMirror(cfg config.Config, log logrus.FieldLogger) (*mirror.Mirror, error) {
	if !cfg.Mirror.Enabled {
		return nil, nil
	}
	client, err := mirror.NewClient(mirror.Credentials{
		Endpoint:        cfg.Mirror.Endpoint,
		Bucket:          cfg.Mirror.Bucket,
		Region:          cfg.Mirror.Region,
		AccessKeyID:     strings.TrimSpace(os.Getenv("PARKSTEP_S3_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("PARKSTEP_S3_SECRET_ACCESS_KEY")),
	})
	if err != nil {
		return nil, err
	}
	return mirror.New(client, mirror.Options{
		DataDir: cfg.DataDir,
		Prefix:  cfg.Mirror.Prefix,
		Workers: cfg.Mirror.Workers,
		Log:     log,
	}), nil
}

// desyncRecorders fans a written report out to the index and the mirror.
type desyncRecorders []network.DesyncRecorder

func (d desyncRecorders) RecordDesync(path string, res *desync.CompareResult) {
	for _, r := range d {
		r.RecordDesync(path, res)
	}
}
