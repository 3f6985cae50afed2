package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	dataagentx "github.com/witthaya/deskflow/agent/agents/dataagent"
	orchestratorx "github.com/witthaya/deskflow/agent/agents/orchestrator"
	supportagentx "github.com/witthaya/deskflow/agent/agents/supportagent"
	auditx "github.com/witthaya/deskflow/agent/audit"
	contractx "github.com/witthaya/deskflow/agent/contract"
	dispatcherx "github.com/witthaya/deskflow/agent/dispatcher"
	gatewayx "github.com/witthaya/deskflow/agent/gateway"
	plannerx "github.com/witthaya/deskflow/agent/planner"
	registryx "github.com/witthaya/deskflow/agent/registry"
	storex "github.com/witthaya/deskflow/agent/store"
	postgresx "github.com/witthaya/deskflow/agent/store/postgres"
	configx "github.com/witthaya/deskflow/pkg/config"
	_ "github.com/witthaya/deskflow/pkg/logger/autoload"
)

type AppConfig struct {
	StoreBackend string        `split_words:"true" default:"memory"`
	AuditBackend string        `split_words:"true" default:"memory"`
	FanOutLimit  int           `split_words:"true" default:"10"`
	Concurrency  int           `split_words:"true" default:"4"`
	QueryTimeout time.Duration `split_words:"true" default:"30s"`
	Demo         bool          `default:"true"`
	ShowTrail    bool          `split_words:"true" default:"false"`
}

var demoQueries = []string{
	"What is customer 1's information?",
	"I'm being charged twice for customer 3 and need help with my billing issue",
	"Show me all active customers who have open tickets",
	"I want to upgrade my account and also need help with a billing problem",
	"What is the status of all high-priority tickets?",
	"Show me ticket history for customer 2",
}

func main() {
	appCfg := configx.MustNew[AppConfig]("APP")

	store, err := buildStore(appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("store init failed")
	}
	sink, err := buildSink(appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("audit sink init failed")
	}

	gw, err := gatewayx.New(store)
	if err != nil {
		log.Fatal().Err(err).Msg("gateway init failed")
	}

	reg := registryx.New()
	for _, build := range []func(contractx.ToolGateway) (contractx.Worker, error){
		func(t contractx.ToolGateway) (contractx.Worker, error) { return dataagentx.New(t) },
		func(t contractx.ToolGateway) (contractx.Worker, error) { return supportagentx.New(t) },
	} {
		w, err := build(gw)
		if err != nil {
			log.Fatal().Err(err).Msg("worker init failed")
		}
		if err := reg.Register(w); err != nil {
			log.Fatal().Err(err).Str("worker", w.Name()).Msg("worker registration failed")
		}
	}
	reg.Seal()

	disp, err := dispatcherx.New(reg, sink, dispatcherx.WithConcurrency(appCfg.Concurrency))
	if err != nil {
		log.Fatal().Err(err).Msg("dispatcher init failed")
	}
	orch, err := orchestratorx.New(
		plannerx.New(plannerx.WithFanOutLimit(appCfg.FanOutLimit)),
		disp,
		sink,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator init failed")
	}

	if appCfg.Demo {
		for _, q := range demoQueries {
			handleOne(orch, appCfg, q)
		}
	}

	fmt.Println("Enter a query (empty line or Ctrl-D to quit):")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || text == "exit" || text == "quit" {
			break
		}
		handleOne(orch, appCfg, text)
	}
}

func handleOne(orch *orchestratorx.Orchestrator, cfg *AppConfig, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()

	fmt.Printf("\n> %s\n", query)
	res, err := orch.HandleQuery(ctx, query)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	fmt.Println(res.Response.Text)

	if !cfg.ShowTrail {
		return
	}
	trail, err := orch.Trail(ctx, res.SessionID)
	if err != nil {
		log.Warn().Err(err).Str("session", res.SessionID).Msg("trail fetch failed")
		return
	}
	fmt.Printf("-- audit trail (%d messages) --\n", len(trail))
	for _, msg := range trail {
		fmt.Printf("  %s %s -> %s %s [%s]\n",
			msg.Kind, msg.Sender, msg.Receiver, msg.Operation, msg.CorrelationID)
	}
}

func buildStore(cfg *AppConfig) (storex.Store, error) {
	switch cfg.StoreBackend {
	case "postgres":
		pgCfg := configx.MustNew[postgresx.Config]("POSTGRES")
		pg, err := postgresx.New(*pgCfg)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(context.Background()); err != nil {
			return nil, err
		}
		return pg, nil
	default:
		mem := storex.NewMemory()
		storex.SeedMemory(mem)
		return mem, nil
	}
}

func buildSink(cfg *AppConfig) (contractx.AuditSink, error) {
	switch cfg.AuditBackend {
	case "redis":
		redisCfg := configx.MustNew[auditx.RedisConfig]("REDIS")
		return auditx.NewRedis(*redisCfg)
	default:
		return auditx.NewMemory(), nil
	}
}
