// Package queue is the Redis-backed job queue between the orchestrator and
// the workers. One list carries both job kinds; the payload decides which:
// a nonzero candidate_id means extraction, anything else discovery.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/skerr"
)

const dequeueTimeout = 5 * time.Second

// Job is one dequeued payload. Exactly one of Discovery and Extraction is
// set.
type Job struct {
	Discovery  *types.DiscoveryJob
	Extraction *types.ExtractionJob
}

// Queue wraps one Redis list.
type Queue struct {
	client *redis.Client
	name   string
}

// New connects to Redis and pings it.
func New(ctx context.Context, redisURL, name string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, skerr.Wrapf(err, "parsing redis URL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, skerr.Wrapf(err, "pinging redis")
	}
	return &Queue{client: client, name: name}, nil
}

// Close releases the Redis connection.
func (q *Queue) Close() error {
	return skerr.Wrap(q.client.Close())
}

func (q *Queue) push(ctx context.Context, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return skerr.Wrap(err)
	}
	return skerr.Wrap(q.client.RPush(ctx, q.name, b).Err())
}

// EnqueueDiscovery pushes a discovery job.
func (q *Queue) EnqueueDiscovery(ctx context.Context, job *types.DiscoveryJob) error {
	return q.push(ctx, job)
}

// EnqueueExtraction pushes an extraction job.
func (q *Queue) EnqueueExtraction(ctx context.Context, job *types.ExtractionJob) error {
	return q.push(ctx, job)
}

// Dequeue blocks up to five seconds for the next job. Returns nil with no
// error when the queue was idle, so worker loops can check for shutdown.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	res, err := q.client.BLPop(ctx, dequeueTimeout, q.name).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "dequeuing from %s", q.name)
	}
	// BLPop returns [key, value].
	if len(res) < 2 {
		return nil, skerr.Fmt("unexpected BLPOP result of length %d", len(res))
	}
	return decodePayload([]byte(res[1]))
}

// decodePayload routes one raw payload to its job kind.
func decodePayload(payload []byte) (*Job, error) {
	var extraction types.ExtractionJob
	if err := json.Unmarshal(payload, &extraction); err == nil && extraction.CandidateID != 0 {
		return &Job{Extraction: &extraction}, nil
	}
	var discovery types.DiscoveryJob
	if err := json.Unmarshal(payload, &discovery); err != nil {
		return nil, skerr.Wrapf(err, "decoding job payload %q", payload)
	}
	return &Job{Discovery: &discovery}, nil
}

// Len returns the queue depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.name).Result()
	return n, skerr.Wrap(err)
}
