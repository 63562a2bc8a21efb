package importer

import (
	"context"
	"crowd-route-service/internal/domain"
	"crowd-route-service/internal/platform/obs"
	"crowd-route-service/internal/ports"
	"fmt"
	"os"
)

// JSONLoader reads the topology from a JSON document on disk.
type JSONLoader struct {
	Path string
}

var _ ports.TopologyLoader = (*JSONLoader)(nil)

func NewJSONLoader(path string) *JSONLoader {
	return &JSONLoader{Path: path}
}

func (l *JSONLoader) LoadTopology(ctx context.Context) (_ []domain.Location, _ []domain.Connection, err error) {
	defer obs.Time(ctx, "topology.json.Load")(&err)

	f, err := os.Open(l.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load topology: open %q: %w", l.Path, err)
	}
	defer f.Close()

	doc, err := Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("load topology: %q: %w", l.Path, err)
	}

	locs, conns, err := doc.ToDomain()
	if err != nil {
		return nil, nil, fmt.Errorf("load topology: %q: %w", l.Path, err)
	}
	return locs, conns, nil
}
