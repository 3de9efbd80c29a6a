package main

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/external"
	"github.com/mr-tron/base58"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/token-manager-server/pkg/app"
	tokenmanager_data "github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager"
	tokenmanager_memory "github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager/memory"
	tokenmanager_postgres "github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager/postgres"
	tokenmanager_service "github.com/code-payments/token-manager-server/pkg/code/server/tokenmanager"
	tokenmanager_web "github.com/code-payments/token-manager-server/pkg/code/server/web/tokenmanager"
	pg "github.com/code-payments/token-manager-server/pkg/database/postgres"
	"github.com/code-payments/token-manager-server/pkg/metrics"
	"github.com/code-payments/token-manager-server/pkg/solana"
	"github.com/code-payments/token-manager-server/pkg/solana/keys"
	solanaruntime "github.com/code-payments/token-manager-server/pkg/solana/runtime"
	tokenmanager_program "github.com/code-payments/token-manager-server/pkg/solana/tokenmanager"
	"github.com/code-payments/token-manager-server/pkg/solana/tokenmanager/program"
)

const reconcileTimeout = 5 * time.Minute

type tokenManagerApp struct {
	log *logrus.Entry

	db         *sql.DB
	service    *tokenmanager_service.Service
	web        *tokenmanager_web.Server
	reconciler *cron.Cron

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// Init implements app.App.Init
func (a *tokenManagerApp) Init(config app.Config, metricsProvider *newrelic.Application) error {
	a.log = logrus.StandardLogger().WithField("type", "tokenmanager/app")
	a.shutdownCh = make(chan struct{})

	conf, err := parseAppConfig(config)
	if err != nil {
		return err
	}

	// Everything that can be rejected is checked before the store is opened
	authKey, err := conf.authPublicKey()
	if err != nil {
		return err
	}

	var reconciler *cron.Cron
	if len(conf.ReconcileSchedule) > 0 {
		reconciler = cron.New(cron.WithLocation(time.UTC))
		_, err = reconciler.AddFunc(conf.ReconcileSchedule, func() {
			a.reconcile(metricsProvider)
		})
		if err != nil {
			return errors.Wrap(err, "invalid reconcile schedule")
		}
	}

	payer, err := keys.LoadOrGenerate(conf.PayerKeypairPath)
	if err != nil {
		return err
	}
	payerKey := payer.Public().(ed25519.PublicKey)
	a.log.WithField("payer", base58.Encode(payerKey)).Info("loaded payer keypair")

	sc, err := a.newSolanaClient(conf, payerKey)
	if err != nil {
		return err
	}

	store, err := a.newStore(conf)
	if err != nil {
		return err
	}

	a.service = tokenmanager_service.NewService(sc, store, payer, tokenmanager_service.WithEnvConfigs())
	a.web = tokenmanager_web.NewTokenManagerServer(a.service, authKey)

	if reconciler != nil {
		a.reconciler = reconciler
		a.reconciler.Start()
	}

	return nil
}

func (a *tokenManagerApp) newSolanaClient(conf *appConfig, payer ed25519.PublicKey) (solana.Client, error) {
	if len(conf.SolanaRpcEndpoint) > 0 {
		return solana.New(solana.ResolveEndpoint(conf.SolanaRpcEndpoint)), nil
	}

	a.log.Warn("no solana rpc endpoint configured, using an in-process runtime")

	bank := solanaruntime.New(solanaruntime.WithProgram(tokenmanager_program.ProgramKey, program.New()))
	if _, err := bank.Airdrop(payer, conf.LocalAirdropLamports); err != nil {
		return nil, errors.Wrap(err, "failed to fund payer")
	}
	return bank.Client(), nil
}

func (a *tokenManagerApp) newStore(conf *appConfig) (tokenmanager_data.Store, error) {
	if conf.StoreType == storeTypeMemory {
		return tokenmanager_memory.New(), nil
	}

	pgConfig := &pg.Config{
		User:               conf.PostgresUser,
		Password:           conf.PostgresPassword,
		Host:               conf.PostgresHost,
		Port:               conf.PostgresPort,
		DbName:             conf.PostgresDbName,
		MaxOpenConnections: conf.PostgresMaxOpenConnections,
		MaxIdleConnections: conf.PostgresMaxIdleConnections,
	}

	var err error
	if conf.PostgresUseAwsIam {
		awsConfig, awsErr := external.LoadDefaultAWSConfig()
		if awsErr != nil {
			return nil, errors.Wrap(awsErr, "failed to load aws config")
		}
		a.db, err = pg.NewWithAwsIam(pgConfig, awsConfig)
	} else {
		a.db, err = pg.NewWithUsernameAndPassword(pgConfig)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to postgres")
	}

	return tokenmanager_postgres.New(a.db), nil
}

func (a *tokenManagerApp) reconcile(metricsProvider *newrelic.Application) {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	if metricsProvider != nil {
		txn := metricsProvider.StartTransaction("tokenmanager_reconcile")
		defer txn.End()
		ctx = newrelic.NewContext(metrics.NewContext(ctx, metricsProvider), txn)
	}

	reconciled, err := a.service.Reconcile(ctx)
	if err != nil {
		a.log.WithError(err).Warn("failure reconciling token managers")
		return
	}
	a.log.WithField("reconciled", reconciled).Debug("reconciled token managers")
}

// HTTPHandlers implements app.App.HTTPHandlers
func (a *tokenManagerApp) HTTPHandlers() map[string]http.HandlerFunc {
	return a.web.GetHandlers()
}

// ShutdownChan implements app.App.ShutdownChan
func (a *tokenManagerApp) ShutdownChan() <-chan struct{} {
	return a.shutdownCh
}

// Stop implements app.App.Stop
func (a *tokenManagerApp) Stop() {
	a.shutdownOnce.Do(func() {
		if a.reconciler != nil {
			<-a.reconciler.Stop().Done()
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				a.log.WithError(err).Warn("failure closing database")
			}
		}
		close(a.shutdownCh)
	})
}
