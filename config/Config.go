package config

import (
	"time"

	"github.com/mohitkumar/humanflow/analytics"
	"github.com/mohitkumar/humanflow/persistence/redis"
)

type StorageType string

type QueueType string

type HistoryType string

type MetadataType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

const QUEUE_TYPE_REDIS QueueType = "redis"
const QUEUE_TYPE_INMEM QueueType = "memory"

const HISTORY_TYPE_REDIS HistoryType = "redis"
const HISTORY_TYPE_INMEM HistoryType = "memory"
const HISTORY_TYPE_MONGO HistoryType = "mongo"

const METADATA_TYPE_REDIS MetadataType = "redis"
const METADATA_TYPE_INMEM MetadataType = "memory"
const METADATA_TYPE_FILE MetadataType = "file"

// QUEUE_NAME is the redis key prefix of the command queue partitions.
const QUEUE_NAME string = "commands"

type Config struct {
	RedisConfig     redis.Config
	MongoConfig     MongoConfig
	HttpPort        int
	StorageType     StorageType
	QueueType       QueueType
	HistoryType     HistoryType
	MetadataType    MetadataType
	MetadataDir     string
	ClusterConfig   ClusterConfig
	ConsumerConfig  ConsumerConfig
	AnalyticsConfig analytics.DataCollectorConfig
	LogLevel        string
	Development     bool
}

type ClusterConfig struct {
	NodeName       string
	Members        []string
	PartitionCount int
}

type ConsumerConfig struct {
	PollTimeout       time.Duration
	QueueDepthRefresh time.Duration
	HistoryCapacity   int
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}
