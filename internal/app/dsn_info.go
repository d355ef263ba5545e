package app

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// dsnInfo summarizes a DSN without exposing credentials, for startup logging.
type dsnInfo struct {
	DatabaseType string
	DatabaseHost string
	DatabasePort int
	DatabaseName string
	DatabasePath string
}

func parseDSNInfo(dsn string) (dsnInfo, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return dsnInfo{}, fmt.Errorf("empty dsn")
	}

	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "file:") {
		pathPart := trimmed[len("file:"):]
		pathPart, _, _ = strings.Cut(pathPart, "?")
		return dsnInfo{
			DatabaseType: "sqlite",
			DatabasePath: strings.TrimSpace(pathPart),
		}, nil
	}
	if !strings.Contains(trimmed, "://") {
		return dsnInfo{DatabaseType: "sqlite", DatabasePath: trimmed}, nil
	}

	u, errParse := url.Parse(trimmed)
	if errParse != nil {
		return dsnInfo{}, fmt.Errorf("parse dsn: %w", errParse)
	}

	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "postgres", "postgresql":
		port := 5432
		if rawPort := strings.TrimSpace(u.Port()); rawPort != "" {
			parsedPort, errPort := strconv.Atoi(rawPort)
			if errPort != nil {
				return dsnInfo{}, fmt.Errorf("parse port: %w", errPort)
			}
			port = parsedPort
		}
		return dsnInfo{
			DatabaseType: "postgres",
			DatabaseHost: strings.TrimSpace(u.Hostname()),
			DatabasePort: port,
			DatabaseName: strings.TrimSpace(strings.TrimPrefix(u.Path, "/")),
		}, nil
	default:
		return dsnInfo{}, fmt.Errorf("unsupported dsn scheme")
	}
}
