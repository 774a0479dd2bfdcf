package storage

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/nikhilbhutani/visionaid/internal/config"
)

// AudioRoute is the HTTP route audio files are served from.
const AudioRoute = "/outputs"

// Open builds the backend selected by STORAGE_BACKEND. The returned close
// function releases any connection the backend holds.
func Open(cfg config.StorageConfig) (Storage, func(), error) {
	switch cfg.Backend {
	case "local", "":
		s, err := NewLocalStorage(cfg.OutputDir, AudioRoute)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "supabase":
		return NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey), func() {}, nil
	case "nats":
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("visionaid"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("jetstream context: %w", err)
		}
		return NewNATSStorage(js, AudioRoute), nc.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}
