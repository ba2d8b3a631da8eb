package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	appconfig "github.com/fyerfyer/doc-chunk-system/config"
	"github.com/fyerfyer/doc-chunk-system/internal/database"
	"github.com/fyerfyer/doc-chunk-system/internal/document"
	"github.com/fyerfyer/doc-chunk-system/internal/models"
	"github.com/fyerfyer/doc-chunk-system/internal/repository"
	"github.com/fyerfyer/doc-chunk-system/internal/segment"
	"github.com/fyerfyer/doc-chunk-system/internal/services"
	"github.com/fyerfyer/doc-chunk-system/pkg/storage"
	"github.com/fyerfyer/doc-chunk-system/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 命令行选项
type cliOptions struct {
	ConfigFile string // 配置文件路径
	DocumentID string // 文档ID，不指定时自动生成
	File       string // 待处理的本地PDF文件路径
	Key        string // 已在存储中的文档键（与File二选一）
	Strategy   string // 覆盖配置中的分块策略
	LogLevel   string // 覆盖配置中的日志级别
}

func main() {
	opts := parseFlags()

	// 加载.env文件(如果存在)，环境变量优先于配置文件
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Failed to load .env file: %v", err)
	}

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.Strategy != "" {
		cfg.Chunking.Strategy = opts.Strategy
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("Starting document chunking system...")

	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	store, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	source := document.NewPDFSource(logger)
	processor := segment.NewHTTPProcessor(&segment.Config{
		BaseURL: cfg.Segment.BaseURL,
		Timeout: cfg.Segment.Timeout,
	}, logger)

	dispatcher, stopWorker, err := setupDispatcher(cfg, processor, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize dispatcher: %v", err)
	}
	defer stopWorker()

	srv := services.NewChunkingService(
		source,
		store,
		dispatcher,
		services.WithChunkingRepository(repository.NewChunkingRepository()),
		services.WithChunkingLogger(logger),
	)

	documentID := opts.DocumentID
	if documentID == "" {
		documentID = uuid.New().String()
	}

	documentKey, err := resolveDocumentKey(opts, documentID, store)
	if err != nil {
		logger.Fatalf("Failed to resolve source document: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := srv.ProcessDocument(ctx, documentID, documentKey, cfg.Chunking.ToChunkerConfig())
	if err != nil {
		logger.Fatalf("Document processing failed: %v", err)
	}

	printResult(result)
}

// parseFlags 解析命令行参数
func parseFlags() cliOptions {
	var opts cliOptions
	flag.StringVar(&opts.ConfigFile, "config", "", "Path to config file")
	flag.StringVar(&opts.DocumentID, "document-id", "", "Document ID (generated when empty)")
	flag.StringVar(&opts.File, "file", "", "Path to a local PDF file to upload and process")
	flag.StringVar(&opts.Key, "key", "", "Storage key of an already uploaded document")
	flag.StringVar(&opts.Strategy, "strategy", "", "Chunking strategy override (fixed-pages/token-based/hybrid)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level override (debug/info/warn/error)")
	flag.Parse()

	if opts.File == "" && opts.Key == "" {
		fmt.Fprintln(os.Stderr, "Either -file or -key must be specified")
		flag.Usage()
		os.Exit(2)
	}
	return opts
}

// setupLogger 设置日志系统
// 配置了日志文件时通过lumberjack滚动输出，否则输出到stderr
func setupLogger(cfg appconfig.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	switch strings.ToLower(cfg.Level) {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.File != "" {
		logger.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}))
	}

	return logger
}

// setupDatabase 初始化元数据数据库
func setupDatabase(cfg *appconfig.Config, logger *logrus.Logger) error {
	dbCfg := database.DefaultConfig()
	if cfg.Database.DSN != "" {
		dbCfg.DSN = cfg.Database.DSN
	}
	if cfg.Database.Type != "" {
		dbCfg.Type = cfg.Database.Type
	}
	return database.Setup(dbCfg, logger)
}

// setupStorage 设置对象存储
func setupStorage(cfg *appconfig.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	case "local", "":
		return storage.NewLocalStorage(storage.LocalConfig{
			Path: cfg.Storage.Path,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// setupDispatcher 设置分块分发器
// 启用队列时走Redis任务队列（asynq），否则使用进程内工作池
func setupDispatcher(cfg *appconfig.Config, processor segment.Processor, logger *logrus.Logger) (services.Dispatcher, func(), error) {
	if !cfg.Queue.Enable {
		dispatcher := services.NewPoolDispatcher(
			processor,
			cfg.Chunking.MaxConcurrency,
			cfg.Segment.Timeout,
			logger,
		)
		return dispatcher, func() {}, nil
	}

	queueCfg := taskqueue.DefaultConfig()
	queueCfg.RedisAddr = cfg.Queue.RedisAddr
	queueCfg.RedisPassword = cfg.Queue.RedisPassword
	queueCfg.RedisDB = cfg.Queue.RedisDB
	if cfg.Queue.Concurrency > 0 {
		queueCfg.Concurrency = cfg.Queue.Concurrency
	}
	if cfg.Queue.RetryLimit > 0 {
		queueCfg.RetryLimit = cfg.Queue.RetryLimit
	}

	queue, err := taskqueue.NewQueue(cfg.Queue.Type, queueCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create task queue: %v", err)
	}

	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		queue.Close()
		return nil, nil, fmt.Errorf("unsupported queue type: %s", cfg.Queue.Type)
	}

	handler := taskqueue.NewChunkProcessHandler(queue, processor.Process, logger)
	worker := taskqueue.NewRedisWorker(redisQueue, queueCfg)
	worker.RegisterHandler(taskqueue.TaskChunkProcess, handler)
	if err := worker.Start(); err != nil {
		queue.Close()
		return nil, nil, fmt.Errorf("failed to start queue worker: %v", err)
	}

	waitTimeout := time.Duration(cfg.Queue.WaitTimeout) * time.Second
	dispatcher := services.NewQueueDispatcher(queue, waitTimeout, logger)

	stop := func() {
		worker.Stop()
		queue.Close()
	}
	return dispatcher, stop, nil
}

// resolveDocumentKey 确定源文档的存储键
// 指定了本地文件时先上传到存储，否则直接使用给定的键
func resolveDocumentKey(opts cliOptions, documentID string, store storage.Storage) (string, error) {
	if opts.Key != "" {
		return opts.Key, nil
	}

	if err := document.ValidateHeader(opts.File); err != nil {
		return "", err
	}

	file, err := os.Open(opts.File)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %v", err)
	}
	defer file.Close()

	key := fmt.Sprintf("uploads/%s%s", documentID, filepath.Ext(opts.File))
	if _, err := store.Save(file, key); err != nil {
		return "", fmt.Errorf("failed to upload document: %v", err)
	}
	return key, nil
}

// printResult 把处理结果以JSON格式输出到标准输出
func printResult(result *models.ProcessResult) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal result: %v", err)
	}
	fmt.Println(string(data))
}
