package workflow

import (
	"context"

	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/sirupsen/logrus"
)

// ReconcileChits checks one business's chit rollups against their payment
// rows and logs every drift found.
func ReconcileChits(ctx context.Context, logger *logrus.Logger, businessId string, repair bool) ([]models.ChitDrift, error) {
	drifts, err := models.ReconcileChits(ctx, repair)
	if err != nil {
		return drifts, err
	}
	if logger != nil {
		for _, d := range drifts {
			logger.WithFields(logrus.Fields{
				"field":       "ChitReconcile",
				"business_id": businessId,
				"chit_id":     d.ChitId,
				"repaired":    d.Repaired,
			}).Warn("chit rollup drift: " + d.String())
		}
		logger.WithFields(logrus.Fields{
			"field":       "ChitReconcile",
			"business_id": businessId,
			"drifts":      len(drifts),
		}).Info("chit reconciliation completed")
	}
	return drifts, nil
}
