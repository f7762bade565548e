// Package urlcache caches HTTP responses by request identity in a two-tier
// store with separate memory and disk budgets.
//
// Keys combine the request method, the normalized URL and the values of the
// Accept, Accept-Encoding and Accept-Language headers (see RequestKey).
// Responses are accounted by body and header size.
//
// # Construction
//
// Configuration is read from the environment:
//
//	URLCACHE_MEMORY_CAPACITY  memory budget in bytes (default 4 MiB)
//	URLCACHE_DISK_CAPACITY    disk budget in bytes (default 20 MiB)
//	URLCACHE_DISK_PATH        directory for the file backend
//	URLCACHE_BACKEND          memory, file or redis
//	URLCACHE_REDIS_PREFIX     key prefix for the redis backend
//	URLCACHE_RESTORE          rebuild the index from a persistent backend
//	REDIS_URL                 redis server for the redis backend
//
//	cfg, err := urlcache.LoadConfig()
//	if err != nil {
//		return err
//	}
//	c, err := urlcache.New(ctx, cfg, urlcache.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
// # Usage
//
//	if resp, ok := c.CachedResponseForRequest(req); ok {
//		return resp.Response(req), nil
//	}
//	c.StoreCachedResponse(&urlcache.CachedResponse{
//		StatusCode: http.StatusOK,
//		Header:     header,
//		Body:       body,
//	}, req)
//
// Transport plugs the cache into an http.Client:
//
//	client := &http.Client{Transport: urlcache.NewTransport(c, nil)}
//
// Shared returns a lazily built in-memory cache for code that has no cache
// injected; SetShared replaces it.
package urlcache
