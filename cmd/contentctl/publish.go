package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"security-content/internal/attack"
)

// datasetStore is the part of the Redis client attack-publish writes through.
type datasetStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

func runPublishCmd(args []string) {
	flags := flag.NewFlagSet("attack-publish", flag.ExitOnError)
	addr := flags.String("addr", "localhost:6379", "Redis address")
	password := flags.String("password", os.Getenv("CONTENTCTL_REDIS_PASSWORD"), "Redis password")
	key := flags.String("key", attack.DefaultRedisKey, "Key to store the dataset under")
	flags.Parse(args)

	if flags.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: contentctl attack-publish [--addr host:port] [--key key] <dataset.json|yaml>\n")
		os.Exit(1)
	}

	os.Exit(publishToRedis(*addr, *password, *key, flags.Arg(0)))
}

func publishToRedis(addr, password, key, path string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	defer client.Close()

	return runPublish(ctx, os.Stdout, os.Stderr, client, addr, key, path)
}

// runPublish loads the dataset at path and stores it under key.
func runPublish(ctx context.Context, stdout, stderr io.Writer, store datasetStore, addr, key, path string) int {
	techniques, err := attack.FileSource{Path: path}.Load(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := attack.Publish(ctx, store, key, techniques); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	idx := attack.NewIndex(techniques)
	fmt.Fprintf(stdout, "  %s  published %d technique(s) to %s/%s\n", statusLabel(true), idx.Len(), addr, key)
	return 0
}
