// Package worker implements the render worker lifecycle and Redis Streams integration.
//
// The worker consumes state writes from a Redis stream, applies them to the
// cells of a per-session store, re-renders the session's tree and publishes
// the output. Only call-sites whose inputs changed are recomputed.
//
// Example usage:
//
//	cfg, _ := config.Load()
//	redisClient := redis.NewClient(cfg.RedisOptions())
//	program, _ := render.LoadProgram(cfg.ProgramPath)
//
//	worker := worker.NewWorker(cfg, redisClient, registry, program,
//	    worker.NewRedisPublisher(redisClient, logger),
//	    worker.NewRedisStateStore(redisClient, logger),
//	    logger)
//	if err := worker.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer worker.Stop()
//
// Messages carry a JSON document in their data field:
//
//	{"session_id": "s1", "op": "write", "writes": {"name": "tom"}}
//	{"session_id": "s1", "op": "close"}
//
// The worker handles:
//   - Redis Streams subscription and consumer group management
//   - Session state persistence under render:state:<session_id>
//   - Follow-up passes requested by helper recomputes
//   - Render output and error publishing
//   - Graceful shutdown, destroying every open session
//
// Health checks are provided via a separate HTTP server:
//
//	healthServer := worker.NewHealthServer(8082, redisClient, worker, logger)
//	healthServer.Start()
//	defer healthServer.Stop()
package worker
