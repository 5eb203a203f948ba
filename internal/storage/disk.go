package storage

import (
	"os"
	"path/filepath"
)

// DiskUsage reports the on-disk size of each named local store.
type DiskUsage struct {
	Total      int64            `json:"total_bytes"`
	Components map[string]int64 `json:"components"`
}

// MeasureDiskUsage returns the size of each named path. A path may be a file
// or a directory (recursively summed). Missing and empty paths count as 0.
func MeasureDiskUsage(paths map[string]string) (*DiskUsage, error) {
	u := &DiskUsage{Components: make(map[string]int64, len(paths))}
	for name, p := range paths {
		n, err := pathSize(p)
		if err != nil {
			return nil, err
		}
		u.Components[name] = n
		u.Total += n
	}
	return u, nil
}

func pathSize(p string) (int64, error) {
	if p == "" {
		return 0, nil
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}
	var total int64
	err = filepath.Walk(p, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
