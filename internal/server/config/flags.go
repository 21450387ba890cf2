package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/filestore/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-G string   gRPC health bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN ("" selects the in-memory repository)
//	-s string   JWT HMAC secret key
//	-l string   log backend: slog or zap
//	-v string   log level
//	-k string   blob backend: s3, disk, badger or memory
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-f string   disk backend root directory
//	-x string   badger data directory
//	-m int      max bytes per ranged read
//	-n int      GC batch size
//	-i duration GC interval (e.g., "5m")
//	-z int      size cache entries
//
// os.Args is filtered to the flags above first so unrelated flags (such as
// -c for the JSON file) do not cause a parse error.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-G", "-d", "-s", "-l", "-v", "-k", "-u", "-p", "-b", "-g", "-e", "-f", "-x", "-m", "-n", "-i", "-z",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "G", config.EndpointAddrGRPC, "gRPC health address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogBackend, "l", config.LogBackend, "log backend (slog|zap)")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")
	fs.StringVar(&config.Backend, "k", config.Backend, "blob backend (s3|disk|badger|memory)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.DiskRoot, "f", config.DiskRoot, "disk backend root directory")
	fs.StringVar(&config.BadgerDir, "x", config.BadgerDir, "badger data directory")

	fs.Int64Var(&config.MaxChunkBytes, "m", config.MaxChunkBytes, "max bytes per ranged read")
	fs.IntVar(&config.GCBatchSize, "n", config.GCBatchSize, "GC batch size")
	fs.DurationVar(&config.GCInterval, "i", config.GCInterval, "GC interval")
	fs.IntVar(&config.SizeCacheEntries, "z", config.SizeCacheEntries, "size cache entries")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
