package factory

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ProDevCodePoland/ringrtc/internal/storage"
	"github.com/ProDevCodePoland/ringrtc/internal/storage/es"
	"github.com/ProDevCodePoland/ringrtc/internal/storage/pg"
)

type StorageConfig struct {
	storage.Type
	Pg *pg.PoolConfig
	Es *es.ClientConfig
}

// LoadEnv reads the result store settings. It returns nil when STORAGE_TYPE is
// unset, which disables result history.
func LoadEnv() (*StorageConfig, error) {
	storageType := storage.Type(os.Getenv("STORAGE_TYPE"))
	if storageType == "" {
		return nil, nil
	}
	if storageType != storage.ES && storageType != storage.PG && storageType != storage.InMem {
		slog.Error("Invalid STORAGE_TYPE environment variable value", "value", storageType)
		return nil, fmt.Errorf(
			"invalid STORAGE_TYPE environment variable value: %s, expected one of %v",
			storageType,
			[]storage.Type{storage.ES, storage.PG, storage.InMem})
	}

	cfg := &StorageConfig{Type: storageType}

	switch storageType {
	case storage.ES:
		var addresses []string
		for _, a := range strings.Split(os.Getenv("ES_ADDRESSES"), ",") {
			if a = strings.TrimSpace(a); a != "" {
				addresses = append(addresses, a)
			}
		}
		if len(addresses) == 0 {
			return nil, fmt.Errorf("elasticsearch configuration is incomplete: ES_ADDRESSES is missing")
		}
		cfg.Es = &es.ClientConfig{
			Addresses: addresses,
			IndexName: os.Getenv("ES_INDEX_NAME"),
			Username:  os.Getenv("ES_USERNAME"),
			Password:  os.Getenv("ES_PASSWORD"),
		}
	case storage.PG:
		connStr := os.Getenv("PG_CONNECTION_STRING")
		if connStr == "" {
			return nil, fmt.Errorf("PostgreSQL connection string is not set")
		}
		cfg.Pg = &pg.PoolConfig{ConnStr: connStr}
	}

	return cfg, nil
}
