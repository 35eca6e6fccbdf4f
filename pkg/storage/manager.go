package storage

import (
	"fmt"
	"sync"

	"github.com/electrohogar/catalogo/config"
	"github.com/electrohogar/catalogo/pkg/logger"
)

var (
	managerMu sync.RWMutex
	disks     = map[string]Disk{}
)

// Connect boots the storage manager. Call once at application startup.
// The local disk is always available; the S3 disk only when a bucket is
// configured.
func Connect() {
	managerMu.Lock()
	defer managerMu.Unlock()

	disks["local"] = newLocalDisk()

	if config.StorageS3Bucket() != "" {
		d, err := newS3Disk()
		if err != nil {
			logger.Warn("storage: s3 disk disabled", "error", err)
		} else {
			disks["s3"] = d
		}
	}
}

// Use returns the named disk ("local" or "s3").
func Use(name string) Disk {
	managerMu.RLock()
	d, ok := disks[name]
	managerMu.RUnlock()
	if !ok {
		panic(fmt.Sprintf("storage: disk %q is not configured", name))
	}
	return d
}

// RegisterDisk plugs in a custom Disk implementation, mainly for tests.
func RegisterDisk(name string, d Disk) {
	managerMu.Lock()
	disks[name] = d
	managerMu.Unlock()
}
