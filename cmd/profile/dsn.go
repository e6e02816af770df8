package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// dsnParts are the DSN_* component variables.
type dsnParts struct {
	Host, Port, User, Password, DB string
	SSLMode, Encrypt, SQLite       string
	Params                         string
}

func (p dsnParts) empty() bool { return p == dsnParts{} }

func partsFromEnv() dsnParts {
	return dsnParts{
		Host:     strings.TrimSpace(os.Getenv("DSN_HOST")),
		Port:     strings.TrimSpace(os.Getenv("DSN_PORT")),
		User:     strings.TrimSpace(os.Getenv("DSN_USER")),
		Password: os.Getenv("DSN_PASSWORD"),
		DB:       strings.TrimSpace(os.Getenv("DSN_DB")),
		SSLMode:  strings.TrimSpace(os.Getenv("DSN_SSLMODE")),
		Encrypt:  strings.TrimSpace(os.Getenv("DSN_ENCRYPT")),
		SQLite:   strings.TrimSpace(os.Getenv("DSN_SQLITE")),
		Params:   strings.TrimSpace(os.Getenv("DSN_PARAMS")),
	}
}

// resolveDSNOverride returns the DSN the operator asked for, if any:
// the flag, then DSN, then the DSN_* components.
func resolveDSNOverride(backend, flagDSN string) (string, bool, error) {
	if flagDSN != "" {
		return flagDSN, true, nil
	}
	if v := strings.TrimSpace(os.Getenv("DSN")); v != "" {
		return v, true, nil
	}
	p := partsFromEnv()
	if p.empty() {
		return "", false, nil
	}
	return buildDSN(backend, p)
}

// normalizeBackend maps aliases onto storage kinds; unknown values fall
// back to postgres.
func normalizeBackend(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mssql", "sqlserver":
		return "mssql"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return "postgres"
	}
}

// buildDSN renders p for backend. Empty parts take local docker-compose
// style defaults.
func buildDSN(backend string, p dsnParts) (string, bool, error) {
	def := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	user, pass, db := def(p.User, "user"), def(p.Password, "password"), def(p.DB, "normalized")

	switch backend {
	case "postgres":
		u := &url.URL{
			Scheme: "postgresql",
			User:   url.UserPassword(user, pass),
			Host:   net.JoinHostPort(def(p.Host, "postgres"), def(p.Port, "5432")),
			Path:   "/" + db,
		}
		q := u.Query()
		q.Set("sslmode", def(p.SSLMode, "disable"))
		appendRawParams(q, p.Params)
		u.RawQuery = q.Encode()
		return u.String(), true, nil

	case "mssql":
		u := &url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(user, pass),
			Host:   net.JoinHostPort(def(p.Host, "mssql"), def(p.Port, "1433")),
		}
		q := u.Query()
		q.Set("database", db)
		q.Set("encrypt", def(p.Encrypt, "disable"))
		appendRawParams(q, p.Params)
		u.RawQuery = q.Encode()
		return u.String(), true, nil

	case "mysql":
		c := mysql.NewConfig()
		c.User, c.Passwd = user, pass
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(def(p.Host, "mysql"), def(p.Port, "3306"))
		c.DBName = db
		c.ParseTime = true
		q := url.Values{}
		appendRawParams(q, p.Params)
		for k := range q {
			if c.Params == nil {
				c.Params = map[string]string{}
			}
			c.Params[k] = q.Get(k)
		}
		return c.FormatDSN(), true, nil

	case "sqlite":
		base := def(p.SQLite, "normalized.db")
		if !strings.Contains(base, ":") {
			base = "file:" + base
		}
		if p.Params == "" {
			return base, true, nil
		}
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		return base + sep + p.Params, true, nil
	}
	return "", false, fmt.Errorf("unsupported backend for DSN: %q", backend)
}

// appendRawParams adds raw query parameters (k=v&k2=v2, no leading '?').
// A malformed fragment is ignored.
func appendRawParams(q url.Values, raw string) {
	parsed, err := url.ParseQuery(strings.TrimSpace(raw))
	if err != nil {
		return
	}
	for k, vals := range parsed {
		if strings.TrimSpace(k) == "" {
			continue
		}
		for _, v := range vals {
			q.Add(k, v)
		}
	}
}
