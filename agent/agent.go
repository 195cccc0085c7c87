package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohitkumar/humanflow/analytics"
	"github.com/mohitkumar/humanflow/cluster"
	"github.com/mohitkumar/humanflow/config"
	"github.com/mohitkumar/humanflow/engine"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/metadata"
	"github.com/mohitkumar/humanflow/metrics"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/persistence/file"
	"github.com/mohitkumar/humanflow/persistence/memory"
	mongostore "github.com/mohitkumar/humanflow/persistence/mongo"
	"github.com/mohitkumar/humanflow/persistence/redis"
	"github.com/mohitkumar/humanflow/rest"
	"github.com/mohitkumar/humanflow/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Agent struct {
	Config           config.Config
	registry         *prometheus.Registry
	metrics          *metrics.Metrics
	ring             *cluster.Ring
	metadataStorage  persistence.MetadataStorage
	executions       persistence.ExecutionStorage
	historyStorage   persistence.HistoryStorage
	queue            persistence.Queue
	mongoClient      *mongo.Client
	inputs           *input.Registry
	metadataService  *metadata.MetadataServiceImpl
	history          *engine.HistoryRecorder
	processor        *engine.Processor
	consumer         *engine.Consumer
	executionService *service.ExecutionService
	httpServer       *rest.Server
	shutdown         bool
	shutdowns        chan struct{}
	shutdownLock     sync.Mutex
	wg               sync.WaitGroup
	consumerWg       sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupLogger,
		a.setupAnalytics,
		a.setupMetrics,
		a.setupStorage,
		a.setupMetadataService,
		a.setupRing,
		a.setupEngine,
		a.setupExecutionService,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupLogger() error {
	return logger.Init(a.Config.LogLevel, a.Config.Development)
}

func (a *Agent) setupAnalytics() error {
	return analytics.InitDataCollector(a.Config.AnalyticsConfig)
}

func (a *Agent) setupMetrics() error {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)
	return nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.executions = redis.NewRedisExecutionStorage(a.Config.RedisConfig)
	case config.STORAGE_TYPE_INMEM:
		a.executions = memory.NewMemoryExecutionStorage()
	default:
		return fmt.Errorf("unknown storage implementation %s", a.Config.StorageType)
	}

	switch a.Config.QueueType {
	case config.QUEUE_TYPE_REDIS:
		a.queue = redis.NewRedisQueue(a.Config.RedisConfig, config.QUEUE_NAME)
	case config.QUEUE_TYPE_INMEM:
		a.queue = memory.NewMemoryQueue()
	default:
		return fmt.Errorf("unknown queue implementation %s", a.Config.QueueType)
	}

	switch a.Config.HistoryType {
	case config.HISTORY_TYPE_REDIS:
		a.historyStorage = redis.NewRedisHistoryStorage(a.Config.RedisConfig)
	case config.HISTORY_TYPE_INMEM:
		a.historyStorage = memory.NewMemoryHistoryStorage()
	case config.HISTORY_TYPE_MONGO:
		client, err := mongostore.Connect(context.Background(), a.Config.MongoConfig.URI)
		if err != nil {
			return err
		}
		a.mongoClient = client
		a.historyStorage = mongostore.NewMongoHistoryStorage(client, a.Config.MongoConfig.Database, a.Config.MongoConfig.Collection)
	default:
		return fmt.Errorf("unknown history implementation %s", a.Config.HistoryType)
	}

	switch a.Config.MetadataType {
	case config.METADATA_TYPE_REDIS:
		a.metadataStorage = redis.NewRedisMetadataStorage(a.Config.RedisConfig)
	case config.METADATA_TYPE_INMEM:
		a.metadataStorage = memory.NewMemoryMetadataStorage()
	case config.METADATA_TYPE_FILE:
		s, err := file.NewFileMetadataStorage(a.Config.MetadataDir)
		if err != nil {
			return err
		}
		a.metadataStorage = s
	default:
		return fmt.Errorf("unknown metadata implementation %s", a.Config.MetadataType)
	}
	logger.Info("storage configured",
		zap.String("executions", string(a.Config.StorageType)),
		zap.String("queue", string(a.Config.QueueType)),
		zap.String("history", string(a.Config.HistoryType)),
		zap.String("metadata", string(a.Config.MetadataType)))
	return nil
}

func (a *Agent) setupMetadataService() error {
	a.inputs = input.NewRegistry()
	a.metadataService = metadata.NewMetadataService(a.metadataStorage, a.inputs)
	return nil
}

func (a *Agent) setupRing() error {
	a.ring = cluster.NewRing(cluster.RingConfig{
		PartitionCount: a.Config.ClusterConfig.PartitionCount,
		NodeName:       a.Config.ClusterConfig.NodeName,
		Members:        a.Config.ClusterConfig.Members,
	})
	return nil
}

func (a *Agent) setupEngine() error {
	a.history = engine.NewHistoryRecorder(a.historyStorage, &a.wg, a.Config.ConsumerConfig.HistoryCapacity)
	a.processor = engine.NewProcessor(a.metadataService, a.executions, a.inputs, a.history, a.metrics)
	a.consumer = engine.NewConsumer(engine.ConsumerConfig{
		Partitions:        a.ring.GetPartitions(),
		PollTimeout:       a.Config.ConsumerConfig.PollTimeout,
		QueueDepthRefresh: a.Config.ConsumerConfig.QueueDepthRefresh,
	}, a.queue, a.processor, a.metrics, &a.consumerWg)
	return nil
}

func (a *Agent) setupExecutionService() error {
	a.executionService = service.NewExecutionService(a.metadataService, a.executions, a.historyStorage, a.queue, a.ring)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.executionService, a.registry)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	a.history.Start()
	if err := a.consumer.Start(); err != nil {
		return err
	}
	go func() {
		if err := a.httpServer.Start(); err != nil {
			logger.Error("http server failed", zap.Error(err))
			_ = a.Shutdown()
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		a.consumer.Stop,
		func() error {
			// history is stopped once no command can record into it
			a.consumerWg.Wait()
			return nil
		},
		a.history.Stop,
		func() error {
			if a.mongoClient == nil {
				return nil
			}
			return a.mongoClient.Disconnect(context.Background())
		},
		analytics.Close,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	_ = logger.Sync()
	return nil
}
