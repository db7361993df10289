package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velora-commerce/refund-agent/agent/engine"
	"github.com/velora-commerce/refund-agent/agent/orchestrator"
	"github.com/velora-commerce/refund-agent/agent/policy"
	"github.com/velora-commerce/refund-agent/agent/prompt"
	"github.com/velora-commerce/refund-agent/agent/state"
	"github.com/velora-commerce/refund-agent/agent/tool"
	configx "github.com/velora-commerce/refund-agent/pkg/config"
	"github.com/velora-commerce/refund-agent/pkg/logger"
	"github.com/velora-commerce/refund-agent/pkg/openrouter"
	"github.com/velora-commerce/refund-agent/server"
	"github.com/velora-commerce/refund-agent/store"
)

func main() {
	logger.Init(*configx.MustNew[logger.Config]("LOG"))

	storeCfg := configx.MustNew[store.Config]("DB")
	st, db, err := store.Open(*storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to postgres")
	}
	defer db.Close()

	policies, err := policy.NewStore()
	if err != nil {
		log.Fatal().Err(err).Msg("load refund policy document")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	taxonomy, err := st.Taxonomy(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("load refund taxonomy")
	}

	eng := engine.New(st)
	registry := tool.NewRegistry(st, eng, policies, log.With().Str("component", "tool").Logger())

	openRouterCfg := configx.MustNew[openrouter.Config]("OPENROUTER")
	model, err := openrouter.NewChatModel(*openRouterCfg, tool.Infos())
	if err != nil {
		log.Fatal().Err(err).Msg("build chat model")
	}

	svc, err := orchestrator.New(
		state.NewPostgresStore(db),
		model,
		registry,
		orchestrator.Config{
			SystemPrompt: prompt.Build(taxonomy, time.Now()),
			Logger:       log.With().Str("component", "orchestrator").Logger(),
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("build dialogue service")
	}

	serverCfg := configx.MustNew[server.Config]("SERVER")
	srv := server.New(svc, st, *serverCfg, log.With().Str("component", "server").Logger())

	log.Info().Str("addr", serverCfg.Addr).Msg("refund agent listening")
	if err := srv.Run(serverCfg.Addr); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}
