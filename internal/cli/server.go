package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"assessment-engine/internal/app"
	"assessment-engine/internal/bank"
	"assessment-engine/internal/config"
	"assessment-engine/internal/domain"
	"assessment-engine/internal/events"
	"assessment-engine/internal/infra/api"
	"assessment-engine/internal/infra/memory"
	pgstore "assessment-engine/internal/infra/postgres"
	redisstore "assessment-engine/internal/infra/redis"
	"assessment-engine/internal/session"
	transport "assessment-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(viperForCmd(cmd))
			if err != nil {
				return err
			}
			logger, closeLogs := setupLogging(cfg)
			defer closeLogs()
			return runServer(cmd.Context(), cfg, logger)
		},
	}
	f := cmd.Flags()
	f.String("port", "", "port to listen on (default 8080)")
	f.String("api-url", "", "survey platform API base URL")
	f.String("redis-addr", "", "redis address for caches and session markers")
	f.StringSlice("kafka-brokers", nil, "kafka brokers for completion events")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	port := cfg.Server.Port
	if port == "" {
		port = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		loader    memory.SurveyLoader  = memory.NewStaticSurveyLoader(sampleSurveys())
		questions session.QuestionBank = memory.NewQuestionBank(samplePools()...)
		submitter session.Submitter    = memory.NewResponseLog()
	)
	if cfg.API.BaseURL != "" {
		client := api.NewClient(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 30*time.Second))
		loader, questions, submitter = client, client, client
		logger.Info("using survey platform API", "base_url", cfg.API.BaseURL)
	}
	if pool != nil {
		loader = pgstore.NewSurveyLoader(pool)
		questions = pgstore.NewQuestionBank(pool)
		logger.Info("loading surveys and question banks from postgres")
	}
	if cfg.API.BaseURL == "" && pool == nil {
		logger.Warn("no API or database configured, serving sample surveys")
	}

	surveyTTL := config.TTLDuration(cfg.Survey.TTL, 10*time.Minute)
	var surveys app.SurveyRepository
	var store app.SessionRepository
	if redisClient != nil {
		surveys = redisstore.NewSurveyRepository(redisClient, loader, surveyTTL)
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		surveys = memory.NewSurveyRepository(loader, surveyTTL)
		store = memory.NewSessionStore()
	}

	publisher, err := events.NewPublisher(events.Config{
		KafkaBrokers: cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer publisher.Close()

	service := app.NewAssessmentService(store, surveys, questions, submitter,
		app.WithPublisher(publisher),
		app.WithLogger(logger),
	)

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      transport.NewRouter(service, logger),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		logger.Info("starting assessment service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleSurveys backs the demo mode used when neither the API nor Postgres is configured.
func sampleSurveys() map[string]domain.Survey {
	settings := domain.ScoringSettings{
		ScoringMode:        domain.ScoringPercentage,
		PassingThreshold:   60,
		ShowScore:          true,
		ShowBreakdown:      true,
		ShowCorrectAnswers: true,
	}
	return map[string]domain.Survey{
		"go-basics": {
			ID:               "sample-go-basics",
			Slug:             "go-basics",
			Title:            "Go basics",
			Type:             domain.SurveyAssessment,
			SourceType:       domain.SourceManual,
			TimeLimitMinutes: 5,
			Questions:        sampleQuestions(),
			ScoringSettings:  settings,
		},
		"go-pool": {
			ID:               "sample-go-pool",
			Slug:             "go-pool",
			Title:            "Go basics (personalized)",
			Type:             domain.SurveyQuiz,
			SourceType:       domain.SourceQuestionBank,
			TimeLimitMinutes: 3,
			ScoringSettings:  settings,
		},
	}
}

func samplePools() []bank.Pool {
	return []bank.Pool{{Slug: "go-pool", DrawCount: 2, Questions: sampleQuestions()}}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            "chan-close",
			Text:          "Who should close a channel?",
			Type:          domain.SingleChoice,
			Options:       []domain.Option{{Text: "The receiver"}, {Text: "The sender"}, {Text: "The garbage collector"}},
			CorrectAnswer: domain.IndexAnswer(1),
			Points:        2,
		},
		{
			ID:            "zero-values",
			Text:          "Which of these have a usable zero value?",
			Type:          domain.MultipleChoice,
			Options:       []domain.Option{{Text: "sync.Mutex"}, {Text: "map[string]int"}, {Text: "bytes.Buffer"}},
			CorrectAnswer: domain.IndicesAnswer(0, 2),
			Points:        2,
		},
		{
			ID:            "keyword",
			Text:          "Which keyword starts a goroutine?",
			Type:          domain.ShortText,
			CorrectAnswer: domain.TextAnswer("go"),
		},
	}
}
