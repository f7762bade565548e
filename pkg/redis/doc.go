// Package redis connects to the Redis server used as a disk-tier backend for
// the response cache.
//
// Connect retries the initial ping according to Config, whose fields load
// from the environment with pkg/config:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	backend := cache.NewRedisBackend(client, "urlcache:")
//
// Healthcheck returns a probe suitable for readiness endpoints:
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//		// errors.Is(err, redis.ErrHealthcheckFailed)
//	}
package redis
