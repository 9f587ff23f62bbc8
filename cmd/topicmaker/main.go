package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/niksmo/storefront/config"
	"github.com/niksmo/storefront/pkg/sigctx"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// topic describes a topic the storefront publishes to.
type topic struct {
	name              string
	partitions        int32
	replicationFactor int16
	configs           map[string]*string
}

func ordersTopic(name string) topic {
	return topic{
		name:              name,
		partitions:        3,
		replicationFactor: 3,
		configs: map[string]*string{
			"cleanup.policy":      kadm.StringPtr("delete"),
			"min.insync.replicas": kadm.StringPtr("2"),
			"retention.ms":        kadm.StringPtr("604800000"),
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure topics: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	sigCtx, stop := sigctx.NotifyContext()
	defer stop()

	cfg := config.Load()
	if len(cfg.Broker.SeedBrokers) == 0 {
		return errors.New("broker.seed_brokers: required")
	}

	cl, err := kadm.NewOptClient(kgo.SeedBrokers(cfg.Broker.SeedBrokers...))
	if err != nil {
		return err
	}
	defer cl.Close()

	start := time.Now()
	if err := ensureTopics(sigCtx, cl, ordersTopic(cfg.Broker.OrdersTopic)); err != nil {
		return err
	}
	fmt.Printf("topics are ready in %s\n", time.Since(start))
	return nil
}

// ensureTopics creates the missing topics. An existing topic is reported
// as is, its settings are not altered.
func ensureTopics(ctx context.Context, cl *kadm.Client, ts ...topic) error {
	var errs []error
	for _, t := range ts {
		_, err := cl.CreateTopic(
			ctx, t.partitions, t.replicationFactor, t.configs, t.name,
		)
		switch {
		case err == nil:
			fmt.Printf("%s: created, partitions=%d replicas=%d\n",
				t.name, t.partitions, t.replicationFactor)
		case errors.Is(err, kerr.TopicAlreadyExists):
			fmt.Printf("%s: exists\n", t.name)
		default:
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}
