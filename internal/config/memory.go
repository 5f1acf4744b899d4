package config

// MemoryConfig controls the storage adapter and artifact lifecycle defaults.
type MemoryConfig struct {
	DatabasePath       string `yaml:"database_path"`
	BusyTimeoutMS      int    `yaml:"busy_timeout_ms"`
	ArchiveAfterDays   int    `yaml:"archive_after_days"`
	PurgeAfterDays     int    `yaml:"purge_after_days"`
	MinAccessToArchive int    `yaml:"min_access_to_keep"`
	DefaultPageSize    int    `yaml:"default_page_size"`
	MaxPageSize        int    `yaml:"max_page_size"`
}

func defaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		DatabasePath:       "data/memoryd.db",
		BusyTimeoutMS:      5000,
		ArchiveAfterDays:   180,
		PurgeAfterDays:     365,
		MinAccessToArchive: 3,
		DefaultPageSize:    25,
		MaxPageSize:        200,
	}
}
