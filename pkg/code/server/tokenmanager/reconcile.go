package tokenmanager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	tokenmanager_data "github.com/code-payments/token-manager-server/pkg/code/data/tokenmanager"
	"github.com/code-payments/token-manager-server/pkg/database/query"
	"github.com/code-payments/token-manager-server/pkg/metrics"
	sync_util "github.com/code-payments/token-manager-server/pkg/sync"
)

// Reconcile re-reads every indexed token manager from the chain. Managers
// that fail to refresh are logged and skipped. It returns the number of
// managers refreshed.
//
// Refreshes run on a pool of workers. Records are striped by mint, so a mint
// is never refreshed by two workers at once.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Reconcile")
	defer tracer.End()

	log := s.log.WithField("method", "Reconcile")
	start := time.Now()

	limit := s.conf.reconcileBatchSize.Get(ctx)
	queue := sync_util.NewStripedChannel[*tokenmanager_data.Record](uint(s.conf.reconcileWorkers.Get(ctx)), uint(limit))

	var reconciled, failed atomic.Int64
	var wg sync.WaitGroup
	for _, records := range queue.Receivers() {
		wg.Add(1)
		go func(records <-chan *tokenmanager_data.Record) {
			defer wg.Done()

			for record := range records {
				if err := s.reconcileRecord(ctx, record); err != nil {
					log.WithError(err).WithFields(logrus.Fields{
						"address": record.Address,
						"mint":    record.Mint,
					}).Warn("failure reconciling token manager")
					failed.Add(1)
					continue
				}
				reconciled.Add(1)
			}
		}(records)
	}

	err := s.enqueueIndexedManagers(ctx, queue, limit)
	queue.Close()
	wg.Wait()

	if err != nil {
		log.WithError(err).Warn("failure paging through index")
		tracer.OnError(err)
		return int(reconciled.Load()), err
	}

	log.WithFields(logrus.Fields{
		"reconciled": reconciled.Load(),
		"failed":     failed.Load(),
	}).Debug("reconciliation complete")
	recordReconcileCompleteEvent(ctx, int(reconciled.Load()), int(failed.Load()), time.Since(start))

	return int(reconciled.Load()), nil
}

func (s *Service) enqueueIndexedManagers(ctx context.Context, queue *sync_util.StripedChannel[*tokenmanager_data.Record], limit uint64) error {
	cursor := query.EmptyCursor
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := s.store.GetAll(ctx, cursor, limit, query.Ascending)
		if err == tokenmanager_data.ErrManagerNotFound {
			return nil
		} else if err != nil {
			return err
		}

		for _, record := range records {
			if err := queue.Send(ctx, []byte(record.Mint), record); err != nil {
				return err
			}
		}

		if uint64(len(records)) < limit {
			return nil
		}
		cursor = query.ToCursor(records[len(records)-1].Id)
	}
}

func (s *Service) reconcileRecord(ctx context.Context, record *tokenmanager_data.Record) error {
	address, err := base58.Decode(record.Address)
	if err != nil {
		return err
	}

	_, err = s.refresh(ctx, address)
	return err
}
