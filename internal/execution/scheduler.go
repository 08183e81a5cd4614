package execution

import (
	"fmt"
	"strconv"
	"strings"

	"compiletest/internal/domain"
)

// Scheduler distributes tests across buckets
type Scheduler interface {
	Schedule(tests []domain.Test, buckets int) [][]domain.Test
}

// RoundRobinScheduler distributes tests evenly across buckets
type RoundRobinScheduler struct{}

// NewRoundRobinScheduler creates a new RoundRobinScheduler
func NewRoundRobinScheduler() *RoundRobinScheduler {
	return &RoundRobinScheduler{}
}

// Schedule distributes tests evenly using round-robin
func (s *RoundRobinScheduler) Schedule(tests []domain.Test, buckets int) [][]domain.Test {
	if buckets <= 0 {
		buckets = 1
	}

	distribution := make([][]domain.Test, buckets)
	for i := range distribution {
		distribution[i] = make([]domain.Test, 0)
	}

	for i, test := range tests {
		distribution[i%buckets] = append(distribution[i%buckets], test)
	}

	return distribution
}

// Shard is the 1-based index of this machine's share out of Count.
type Shard struct {
	Index int
	Count int
}

// ParseShard parses "i/n". An empty string means no sharding.
func ParseShard(s string) (Shard, error) {
	if s == "" {
		return Shard{Index: 1, Count: 1}, nil
	}
	i, n, ok := strings.Cut(s, "/")
	if !ok {
		return Shard{}, fmt.Errorf("invalid shard %q: expected i/n", s)
	}
	index, err := strconv.Atoi(i)
	if err != nil {
		return Shard{}, fmt.Errorf("invalid shard index %q: %w", i, err)
	}
	count, err := strconv.Atoi(n)
	if err != nil {
		return Shard{}, fmt.Errorf("invalid shard count %q: %w", n, err)
	}
	if count < 1 || index < 1 || index > count {
		return Shard{}, fmt.Errorf("invalid shard %q: index must be between 1 and %d", s, count)
	}
	return Shard{Index: index, Count: count}, nil
}

// Select keeps this shard's tests.
func (sh Shard) Select(s Scheduler, tests []domain.Test) []domain.Test {
	if sh.Count <= 1 {
		return tests
	}
	return s.Schedule(tests, sh.Count)[sh.Index-1]
}
