package storage

import "catalog/internal/ports"

// Provider is the image storage contract shared by the API, worker and seeder.
type Provider = ports.StorageProvider
