package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

var knownFlags = []string{
	"-a", "-g", "-backend", "-d", "-redis", "-redis-password", "-redis-db",
	"-as", "-rs", "-t", "-r", "-insecure-cookies", "-log-level", "-log-format", "-cors",
	"-u", "-p", "-b", "-region", "-e", "-public-url", "-tmp",
}

// parseFlags overlays command-line flags onto config.
//
//	-a      HTTP bind address
//	-g      gRPC bind address
//	-backend  store backend: postgres, redis or memory
//	-d      PostgreSQL DSN
//	-redis, -redis-password, -redis-db  Redis connection
//	-as, -rs  access / refresh token secrets
//	-t      access token validity, minutes
//	-r      refresh token validity, minutes
//	-insecure-cookies  drop the Secure cookie attribute (local development)
//	-cors   allowed cross-origin request origin
//	-u, -p, -b, -region, -e, -public-url  S3 settings
//	-tmp    temp dir for spooled uploads
//
// Durations are whole minutes on the command line.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.StoreBackend, "backend", config.StoreBackend, "store backend (postgres|redis|memory)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.RedisPassword, "redis-password", config.RedisPassword, "redis password")
	fs.IntVar(&config.RedisDB, "redis-db", config.RedisDB, "redis database number")
	fs.StringVar(&config.AccessTokenSecret, "as", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")

	accessMinutes := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	refreshMinutes := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh token validity (in minutes)")
	insecureCookies := fs.Bool("insecure-cookies", !config.CookieSecure, "omit the Secure cookie attribute")

	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json|text)")
	fs.StringVar(&config.CORSOrigin, "cors", config.CORSOrigin, "allowed CORS origin")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBaseURL, "public-url", config.S3PublicBaseURL, "public base URL for stored media")
	fs.StringVar(&config.UploadTempDir, "tmp", config.UploadTempDir, "temp dir for uploads")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessMinutes) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshMinutes) * time.Minute
	config.CookieSecure = !*insecureCookies
}
