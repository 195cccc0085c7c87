package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/humanflow/agent"
	"github.com/mohitkumar/humanflow/analytics"
	"github.com/mohitkumar/humanflow/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("redis-password", "", "redis password")
	cmd.Flags().Int("redis-pool-size", 0, "redis connection pool size, 0 uses the client default")
	cmd.Flags().String("namespace", "humanflow", "namespace used in storage")
	cmd.Flags().Int("http-port", 8080, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "execution storage: redis or memory")
	cmd.Flags().String("queue-impl", "redis", "command queue: redis or memory")
	cmd.Flags().String("history-impl", "redis", "history storage: redis, mongo or memory")
	cmd.Flags().String("metadata-impl", "redis", "process definition storage: redis, file or memory")
	cmd.Flags().String("metadata-dir", "processes", "directory of process definitions for the file metadata storage")
	cmd.Flags().String("mongo-uri", "mongodb://localhost:27017", "mongo uri for the mongo history storage")
	cmd.Flags().String("mongo-database", "humanflow", "mongo database for history")
	cmd.Flags().String("mongo-collection", "history", "mongo collection for history")
	cmd.Flags().Int("partition-count", 8, "number of command queue partitions")
	cmd.Flags().String("node-name", "node-1", "name of this node in the partition ring")
	cmd.Flags().String("members", "", "comma separated names of the other nodes in the partition ring")
	cmd.Flags().Duration("poll-timeout", 0, "how long a consumer waits on an empty partition")
	cmd.Flags().Duration("queue-depth-refresh", 0, "how often queue depth metrics are refreshed, 0 disables them")
	cmd.Flags().Int("history-capacity", 512, "history entries buffered before commits wait on history writes")
	cmd.Flags().String("analytics-file", "", "file receiving one json line per processed command")
	cmd.Flags().String("log-level", "info", "log level")
	cmd.Flags().Bool("development", false, "human readable logs")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configFile != "" {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.PoolSize = viper.GetInt("redis-pool-size")
	c.cfg.MongoConfig.URI = viper.GetString("mongo-uri")
	c.cfg.MongoConfig.Database = viper.GetString("mongo-database")
	c.cfg.MongoConfig.Collection = viper.GetString("mongo-collection")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.QueueType = config.QueueType(viper.GetString("queue-impl"))
	c.cfg.HistoryType = config.HistoryType(viper.GetString("history-impl"))
	c.cfg.MetadataType = config.MetadataType(viper.GetString("metadata-impl"))
	c.cfg.MetadataDir = viper.GetString("metadata-dir")
	c.cfg.ClusterConfig.PartitionCount = viper.GetInt("partition-count")
	c.cfg.ClusterConfig.NodeName = viper.GetString("node-name")
	if members := viper.GetString("members"); members != "" {
		c.cfg.ClusterConfig.Members = strings.Split(members, ",")
	}
	c.cfg.ConsumerConfig.PollTimeout = viper.GetDuration("poll-timeout")
	c.cfg.ConsumerConfig.QueueDepthRefresh = viper.GetDuration("queue-depth-refresh")
	c.cfg.ConsumerConfig.HistoryCapacity = viper.GetInt("history-capacity")
	c.cfg.AnalyticsConfig.CollectorType = analytics.NOOP_DATA_COLLECTOR
	if file := viper.GetString("analytics-file"); file != "" {
		c.cfg.AnalyticsConfig.CollectorType = analytics.LOG_FILE_DATA_COLLECTOR
		c.cfg.AnalyticsConfig.FileName = file
	}
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.Development = viper.GetBool("development")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	err = agent.Start()
	if err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "humanflow",
		Short:   "Runs the workflow engine: http api and command consumers",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
