package config

import (
	"fmt"
	"sort"
	"strings"
)

// managedDSNParams are DSN parameters the engine always sets itself so
// DATETIME columns scan as UTC time.Time values.
var managedDSNParams = map[string]bool{
	"parseTime": true,
	"loc":       true,
}

// DSN returns a MySQL-compatible data source name built from the discrete
// connection fields. Extra Params are appended in sorted key order;
// managed parameters are skipped.
func (d *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Database,
	)

	if len(d.Params) == 0 {
		return dsn
	}

	keys := make([]string, 0, len(d.Params))
	for key := range d.Params {
		if managedDSNParams[key] || strings.TrimSpace(key) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		dsn += fmt.Sprintf("&%s=%s", key, d.Params[key])
	}

	return dsn
}
