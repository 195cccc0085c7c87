package engine

import (
	"context"
	"strconv"
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/metrics"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/util"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Partitions        []int
	PollTimeout       time.Duration
	MaxPollBackoff    time.Duration
	AckRetries        int
	AckRetryInterval  time.Duration
	QueueDepthRefresh time.Duration
}

// Consumer runs one loop per owned partition. A loop handles one command
// at a time, so commands of one execution never run concurrently.
type Consumer struct {
	config    ConsumerConfig
	queue     persistence.Queue
	processor *Processor
	metrics   *metrics.Metrics
	encDec    util.EncoderDecoder[model.Command]
	depth     *util.TickWorker
	stop      chan struct{}
	wg        *sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewConsumer(config ConsumerConfig, queue persistence.Queue, processor *Processor, m *metrics.Metrics, wg *sync.WaitGroup) *Consumer {
	if config.PollTimeout <= 0 {
		config.PollTimeout = time.Second
	}
	if config.MaxPollBackoff <= 0 {
		config.MaxPollBackoff = 30 * time.Second
	}
	if config.AckRetries <= 0 {
		config.AckRetries = 3
	}
	if config.AckRetryInterval <= 0 {
		config.AckRetryInterval = 100 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Consumer{
		config:    config,
		queue:     queue,
		processor: processor,
		metrics:   m,
		encDec:    util.NewJsonEncoderDecoder[model.Command](),
		stop:      make(chan struct{}),
		wg:        wg,
		ctx:       ctx,
		cancel:    cancel,
	}
	if config.QueueDepthRefresh > 0 {
		c.depth = util.NewTickWorker("queue-depth", config.QueueDepthRefresh, c.refreshDepth, wg)
	}
	return c
}

// Start puts back deliveries a previous run left unacknowledged and starts
// polling.
func (c *Consumer) Start() error {
	for _, partition := range c.config.Partitions {
		n, err := c.queue.Recover(c.ctx, partition)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("recovered unacknowledged commands", zap.Int("partition", partition), zap.Int("count", n))
		}
	}
	for _, partition := range c.config.Partitions {
		c.wg.Add(1)
		go c.run(partition)
	}
	if c.depth != nil {
		c.depth.Start()
	}
	logger.Info("command consumer started", zap.Ints("partitions", c.config.Partitions))
	return nil
}

func (c *Consumer) Stop() error {
	close(c.stop)
	c.cancel()
	if c.depth != nil {
		return c.depth.Stop()
	}
	return nil
}

func (c *Consumer) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = c.config.MaxPollBackoff
	b.MaxElapsedTime = 0
	return b
}

func (c *Consumer) run(partition int) {
	defer c.wg.Done()
	b := c.newBackOff()
	for {
		select {
		case <-c.stop:
			logger.Info("stopping command consumer", zap.Int("partition", partition))
			return
		default:
		}
		d, err := c.queue.Poll(c.ctx, partition, c.config.PollTimeout)
		if err != nil {
			if c.ctx.Err() != nil {
				continue
			}
			logger.Error("error polling command queue", zap.Int("partition", partition), zap.Error(err))
			c.wait(b.NextBackOff())
			continue
		}
		if d == nil {
			continue
		}
		// in-flight commands finish even when Stop is called meanwhile
		if retry := c.Handle(context.Background(), d); retry {
			c.wait(b.NextBackOff())
			continue
		}
		b.Reset()
	}
}

func (c *Consumer) wait(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-c.stop:
	}
}

// Handle processes one delivery and settles it: acked when the command was
// applied or can never be, requeued when it failed on infrastructure. It
// reports whether the delivery was requeued.
func (c *Consumer) Handle(ctx context.Context, d *persistence.Delivery) bool {
	cmd, err := c.encDec.Decode(d.Payload)
	if err != nil {
		logger.Error("dropping undecodable command", zap.Int("partition", d.Partition), zap.Error(err))
		c.settle(ctx, d, c.queue.Ack)
		return false
	}
	err = c.processor.Process(ctx, *cmd)
	if err != nil && !api.IsTerminal(err) {
		c.settle(ctx, d, c.queue.Requeue)
		return true
	}
	c.settle(ctx, d, c.queue.Ack)
	return false
}

func (c *Consumer) settle(ctx context.Context, d *persistence.Delivery, fn func(context.Context, *persistence.Delivery) error) {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(c.config.AckRetryInterval), uint64(c.config.AckRetries))
	err := backoff.Retry(func() error {
		return fn(ctx, d)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		logger.Error("error settling command delivery, it will be redelivered on restart", zap.Int("partition", d.Partition), zap.Error(err))
	}
}

func (c *Consumer) refreshDepth() {
	for _, partition := range c.config.Partitions {
		n, err := c.queue.Len(c.ctx, partition)
		if err != nil {
			logger.Error("error reading queue depth", zap.Int("partition", partition), zap.Error(err))
			continue
		}
		c.metrics.SetQueueDepth(strconv.Itoa(partition), int(n))
	}
}
