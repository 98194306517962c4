package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"healthcare-assistant/handler"
	"healthcare-assistant/internal/classify"
	"healthcare-assistant/internal/config"
	"healthcare-assistant/internal/integrations/bedrockagent"
	"healthcare-assistant/internal/integrations/bedrockmodel"
	"healthcare-assistant/internal/integrations/openai"
	"healthcare-assistant/internal/integrations/paramstore"
	"healthcare-assistant/internal/metrics"
	"healthcare-assistant/internal/repository"
	"healthcare-assistant/internal/usecase"
)

type BuildResult struct {
	Config   config.Config
	Handler  *handler.Handler
	Chat     *usecase.ChatService
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

// NewLogger builds the production JSON logger at the requested level.
func NewLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Build wires every component from cfg. Nothing here performs network I/O;
// upstream settings and credentials are resolved on first use.
func Build(_ context.Context, cfg config.Config, awsCfg aws.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.MetricsNamespace, registry)

	params, err := paramstore.New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("paramstore init failed: %w", err)
	}

	var settings *usecase.SettingsLoader
	if cfg.PinnedSettings() {
		settings = usecase.StaticSettings(usecase.RuntimeSettings{
			AgentID:      cfg.AgentID,
			AgentAliasID: cfg.AgentAliasID,
			ModelID:      cfg.ModelID,
		})
	} else {
		settings, err = usecase.NewSettingsLoader(params, cfg.ParamPrefix)
		if err != nil {
			return nil, fmt.Errorf("settings loader init failed: %w", err)
		}
	}

	store, err := buildStore(cfg, awsCfg)
	if err != nil {
		return nil, err
	}

	agentClient, err := bedrockagent.New(bedrockagentruntime.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("bedrock agent client init failed: %w", err)
	}
	agentTier, err := usecase.NewAgentGenerator(agentClient, settings, logger.Named("agent"))
	if err != nil {
		return nil, fmt.Errorf("agent tier init failed: %w", err)
	}

	modelClient, agentType, err := buildModelClient(cfg, awsCfg, params)
	if err != nil {
		return nil, err
	}
	directTier, err := usecase.NewDirectModelGenerator(modelClient, settings, agentType,
		usecase.WithMaxTokens(cfg.MaxTokens),
		usecase.WithTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("direct model tier init failed: %w", err)
	}

	tables, err := classify.DefaultTables()
	if err != nil {
		return nil, fmt.Errorf("keyword tables init failed: %w", err)
	}

	orchestrator, err := usecase.NewOrchestrator(
		classify.NewPipeline(tables),
		[]usecase.Generator{agentTier, directTier},
		usecase.NewStaticGenerator(),
		usecase.WithTierTimeout(cfg.TierTimeout),
		usecase.WithRecorder(m),
		usecase.WithLogger(logger.Named("orchestrator")),
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}

	chat, err := usecase.NewChatService(orchestrator, store, logger.Named("chat"), m, cfg.MaxMessageLength)
	if err != nil {
		return nil, fmt.Errorf("chat service init failed: %w", err)
	}

	h, err := handler.NewHandler(chat, handler.WithLogger(logger.Named("handler")))
	if err != nil {
		return nil, fmt.Errorf("handler init failed: %w", err)
	}

	return &BuildResult{
		Config:   cfg,
		Handler:  h,
		Chat:     chat,
		Metrics:  m,
		Registry: registry,
	}, nil
}

func buildStore(cfg config.Config, awsCfg aws.Config) (usecase.ConversationStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return repository.NewMemoryStore(), nil
	case config.StoreDynamoDB:
		c, err := repository.New(dynamodb.NewFromConfig(awsCfg), cfg.StateTable,
			repository.WithUserIndex(cfg.UserIndex),
			repository.WithTTL(cfg.ConversationTTL),
		)
		if err != nil {
			return nil, fmt.Errorf("conversation store init failed: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported store %q", cfg.Store)
	}
}

func buildModelClient(cfg config.Config, awsCfg aws.Config, params *paramstore.Client) (usecase.ModelClient, string, error) {
	switch cfg.DirectModelProvider {
	case config.ProviderOpenAI:
		c, err := openai.NewClient(params, cfg.ParamPrefix)
		if err != nil {
			return nil, "", fmt.Errorf("openai client init failed: %w", err)
		}
		return c, openai.AgentType, nil
	case config.ProviderBedrock:
		c, err := bedrockmodel.New(bedrockruntime.NewFromConfig(awsCfg))
		if err != nil {
			return nil, "", fmt.Errorf("bedrock model client init failed: %w", err)
		}
		return c, bedrockmodel.AgentType, nil
	default:
		return nil, "", fmt.Errorf("unsupported direct model provider %q", cfg.DirectModelProvider)
	}
}
