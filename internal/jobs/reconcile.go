package jobs

import (
	"context"
	"log"
)

// Reconciler repairs graph/vector drift; satisfied by integrity.Checker.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]string, error)
}

// ReconcileProcessor runs one reconciliation pass per tick: chunks that are
// in the graph but missing from the vector store get re-embedded. It exists
// because embedding failures during ingestion are deliberately non-fatal.
type ReconcileProcessor struct {
	reconciler Reconciler
}

func NewReconcileProcessor(r Reconciler) *ReconcileProcessor {
	return &ReconcileProcessor{reconciler: r}
}

func (p *ReconcileProcessor) ProcessJobs(ctx context.Context) error {
	repaired, err := p.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}
	if len(repaired) > 0 {
		log.Printf("reconcile: re-embedded %d chunks", len(repaired))
	}
	return nil
}
