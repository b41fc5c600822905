package cfg

type Cfg struct {
	// Remote database (Supabase Postgres)
	PostStore  string // postgres or memory
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Device-local durable storage
	LocalStorePath string

	// Application configuration
	Port               string
	BaseUrl            string
	GeoLookupURL       string
	GeoLookupTimeout   int // seconds
	DefaultCountry     string
	PageSize           int
	SearchDebounce     int // milliseconds
	SessionIdleTimeout int // minutes

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
